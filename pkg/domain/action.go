package domain

// ReplyKind tells the channel how to render a Reply.
type ReplyKind string

// Standard reply kinds
const (
	// ReplyText is a plain message, optionally with buttons.
	ReplyText ReplyKind = "text"

	// ReplyCard is a rich message: a list of cards, each with title, subtitle, image and buttons.
	ReplyCard ReplyKind = "card"

	// ReplyLocation is a map pin.
	ReplyLocation ReplyKind = "location"

	// ReplyNotice is a short acknowledgement (e.g. "added to cart").
	// Channels without toasts send it as text.
	ReplyNotice ReplyKind = "notice"
)

// Button is a pressable option whose Payload is sent back as an EventButton.
type Button struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Card is one element of a rich reply.
type Card struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Reply is a channel-agnostic outbound message.
type Reply struct {
	Kind ReplyKind `json:"kind"`

	// To overrides the recipient. Empty means the user who sent the event.
	To *UserRef `json:"to,omitempty"`

	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Buttons  [][]Button  `json:"buttons,omitempty"`
	Cards    []Card      `json:"cards,omitempty"`
	Location Coordinates `json:"location"`
}

// PaymentRequest asks the payment collaborator to charge the user.
type PaymentRequest struct {
	ID          string
	Title       string
	Description string
	Total       Money
	Lines       []PaymentLine
}

// PaymentLine is one labeled portion of a payment.
type PaymentLine struct {
	Label  string
	Amount Money
}
