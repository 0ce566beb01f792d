// Package runtime implements the conversation state machine: one handler per
// domain.State, dispatched by an exhaustive switch, each returning an explicit
// domain.Outcome. It never persists or sends anything itself.
package runtime
