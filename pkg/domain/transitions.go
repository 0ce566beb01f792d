package domain

// Edge is one documented move of the conversation: From goes to To when the
// user does On. Staying in place is always allowed and not listed.
type Edge struct {
	From State
	To   State
	On   string
}

var edges = []Edge{
	{StateStart, StateMenu, "any message"},
	{StateMenu, StateProductDetail, "product"},
	{StateMenu, StateCart, "cart"},
	{StateProductDetail, StateMenu, "back"},
	{StateProductDetail, StateCart, "cart"},
	{StateCart, StateMenu, "menu"},
	{StateCart, StateWaitingEmail, "checkout"},
	{StateWaitingEmail, StateWaitingAddress, "e-mail accepted"},
	{StateWaitingAddress, StateWaitingDeliveryChoice, "deliverable address"},
	{StateWaitingDeliveryChoice, StateStart, "pickup"},
	{StateWaitingDeliveryChoice, StateWaitingPayment, "deliver"},
	{StateWaitingDeliveryChoice, StateWaitingAddress, "deliver without a location"},
	{StateWaitingDeliveryChoice, StateCart, "deliver with an empty cart"},
	{StateWaitingPayment, StateMenu, "paid"},
	{StateWaitingPayment, StateCart, "payment failed"},
}

// Transitions returns the edges of the state machine. The reset command,
// which leads from every state to MENU, is not included.
func Transitions() []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// CanTransition reports whether the machine may move from one state to the
// other on a single event, the reset command included.
func CanTransition(from, to State) bool {
	if from == to || to == StateMenu {
		return true
	}
	for _, e := range edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}
