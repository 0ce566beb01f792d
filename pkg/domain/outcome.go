package domain

// Outcome is the explicit result of handling one event: advance, retry in place, or abort.
type Outcome struct {
	Kind OutcomeKind

	// Session is the next session snapshot. Only set for OutcomeAdvance.
	Session *Session

	// Replies are sent in order for OutcomeAdvance and OutcomeRetry.
	Replies []Reply

	// Payment, when set, is handed to the payment collaborator after the replies are sent.
	Payment *PaymentRequest

	// Err carries the reason for OutcomeRetry and OutcomeFatal.
	Err error
}

// Advance builds an outcome that persists next and sends replies.
func Advance(next *Session, replies ...Reply) Outcome {
	return Outcome{Kind: OutcomeAdvance, Session: next, Replies: replies}
}

// Retry builds an outcome that keeps the stored session untouched.
func Retry(err error, replies ...Reply) Outcome {
	return Outcome{Kind: OutcomeRetry, Err: err, Replies: replies}
}

// Fatal builds an outcome that drops the event.
func Fatal(err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Err: err}
}

// NextState returns the state the user ends up in, given the state they were in.
func (o Outcome) NextState(current State) State {
	if o.Kind == OutcomeAdvance && o.Session != nil {
		return o.Session.State
	}
	return current
}
