package domain

import (
	"fmt"
	"time"
)

// State is a named stage of the ordering conversation.
// The set is closed: ParseState rejects any tag not listed below.
type State string

const (
	StateStart                 State = "START"
	StateMenu                  State = "MENU"
	StateProductDetail         State = "PRODUCT_DETAIL"
	StateCart                  State = "CART"
	StateWaitingEmail          State = "WAITING_EMAIL"
	StateWaitingAddress        State = "WAITING_ADDRESS"
	StateWaitingDeliveryChoice State = "WAITING_DELIVERY_CHOICE"
	StateWaitingPayment        State = "WAITING_PAYMENT" // Payment collaborator owns the flow until its callback
)

var allStates = []State{
	StateStart,
	StateMenu,
	StateProductDetail,
	StateCart,
	StateWaitingEmail,
	StateWaitingAddress,
	StateWaitingDeliveryChoice,
	StateWaitingPayment,
}

// AllStates returns every state of the machine in declaration order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// Valid reports whether s belongs to the state machine.
func (s State) Valid() bool {
	for _, known := range allStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// ParseState converts a stored tag into a State.
func ParseState(tag string) (State, error) {
	s := State(tag)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, tag)
	}
	return s, nil
}

// UserRef identifies a user on a specific chat channel.
type UserRef struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
}

// Key returns the session key for the user. Cart ids use the same key so that
// the same person on two channels gets two independent carts.
func (u UserRef) Key() string {
	return u.Channel + ":" + u.ID
}

// Session represents the persisted conversation snapshot of one user.
type Session struct {
	User  UserRef `json:"user"`
	State State   `json:"state"`

	// Scratch data accumulated mid-flow.
	ProductID       string       `json:"product_id,omitempty"`
	Category        string       `json:"category,omitempty"`
	Email           string       `json:"email,omitempty"`
	CustomerID      string       `json:"customer_id,omitempty"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	LocationID      string       `json:"location_id,omitempty"`
	LocationAddress string       `json:"location_address,omitempty"`
	CourierID       string       `json:"courier_id,omitempty"`
	DeliveryFee     Money        `json:"delivery_fee"`

	// Revision counts persisted transitions. Two writers that started from the
	// same revision produce the same next revision, which makes lost updates visible.
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`

	// Sealed carries the encrypted snapshot when the store encrypts sessions.
	// Everything but User, State and Revision is zero in that case.
	Sealed string `json:"sealed,omitempty"`
}

// NewSession creates a clean session at the initial state.
func NewSession(user UserRef) *Session {
	return &Session{
		User:  user,
		State: StateStart,
	}
}

// Reset forces the session back to START and discards every scratch field.
func (s *Session) Reset() {
	*s = Session{
		User:      s.User,
		State:     StateStart,
		Revision:  s.Revision,
		UpdatedAt: s.UpdatedAt,
	}
}

// ClearCheckout drops the data collected during checkout.
func (s *Session) ClearCheckout() {
	s.Coordinates = nil
	s.LocationID = ""
	s.LocationAddress = ""
	s.CourierID = ""
	s.DeliveryFee = Money{}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.Coordinates != nil {
		coords := *s.Coordinates
		c.Coordinates = &coords
	}
	return &c
}
