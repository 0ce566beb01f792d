package domain

import "strings"

// EventKind discriminates the inbound Event union.
type EventKind string

const (
	EventText     EventKind = "text"
	EventButton   EventKind = "button"
	EventLocation EventKind = "location"
	EventPayment  EventKind = "payment"
)

// ResetCommand is the literal command that forces any session back to START.
const ResetCommand = "/start"

// Event is one inbound user action, already stripped of channel specifics.
type Event struct {
	Kind EventKind
	User UserRef

	// Text holds the message text for EventText.
	Text string

	// Payload holds the opaque button payload for EventButton.
	Payload string

	// Location holds the shared coordinates for EventLocation.
	Location *Coordinates

	// PaymentSucceeded holds the outcome for EventPayment.
	PaymentSucceeded bool
}

// NewTextEvent creates a text message event.
func NewTextEvent(user UserRef, text string) Event {
	return Event{Kind: EventText, User: user, Text: text}
}

// NewButtonEvent creates a button press event.
func NewButtonEvent(user UserRef, payload string) Event {
	return Event{Kind: EventButton, User: user, Payload: payload}
}

// NewLocationEvent creates a shared location event.
func NewLocationEvent(user UserRef, coords Coordinates) Event {
	return Event{Kind: EventLocation, User: user, Location: &coords}
}

// NewPaymentEvent creates a payment callback event.
func NewPaymentEvent(user UserRef, succeeded bool) Event {
	return Event{Kind: EventPayment, User: user, PaymentSucceeded: succeeded}
}

// IsReset reports whether the event is the reset command.
func (e Event) IsReset() bool {
	switch e.Kind {
	case EventText:
		return strings.TrimSpace(e.Text) == ResetCommand
	case EventButton:
		return e.Payload == ResetCommand
	}
	return false
}

// Input returns the raw textual content of the event (text or payload).
func (e Event) Input() string {
	if e.Kind == EventButton {
		return e.Payload
	}
	return e.Text
}

// Button actions understood by the engine. Payloads are "<action>;<argument>"
// or a bare action/identifier.
const (
	ActionCart     = "cart"
	ActionMenu     = "menu"
	ActionBack     = "back"
	ActionProduct  = "product"
	ActionCategory = "category"
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionCheckout = "checkout"
	ActionPickup   = "pickup"
	ActionDeliver  = "deliver"
	ActionPayment  = "payment"
)

// Arguments of ActionPayment buttons.
const (
	PaymentConfirmed = "ok"
	PaymentDeclined  = "fail"
)

// PayloadSeparator splits a button payload into action and argument.
const PayloadSeparator = ";"

// ParsePayload splits a payload into its action and argument. A payload without
// separator is returned as the action with an empty argument.
func ParsePayload(payload string) (action, argument string) {
	action, argument, _ = strings.Cut(payload, PayloadSeparator)
	return strings.TrimSpace(action), strings.TrimSpace(argument)
}

// Payload builds a button payload from an action and an optional argument.
func Payload(action, argument string) string {
	if argument == "" {
		return action
	}
	return action + PayloadSeparator + argument
}
