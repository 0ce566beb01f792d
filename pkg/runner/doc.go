/*
Package runner applies conversation outcomes to the outside world.

A Dispatcher handles one inbound event end to end: it takes the per-user lock,
loads the session, asks the engine for an Outcome, persists the next session
when the outcome advances, and delivers the replies through the chat channels.

# Key Components

  - Dispatcher: lock, load, step, save, send. Safe for concurrent use across users.
  - Console: a terminal chat channel used by the local demo mode.
  - InputLimits: per-channel size, UTF-8 and control-character checks on user input.

# Usage

	d := runner.NewDispatcher(engine, session.NewManager(store),
		runner.WithChannel(telegramChannel),
		runner.WithPaymentGateway("telegram", telegramChannel),
		runner.WithInputLimits("telegram", runner.InputLimits{Text: 4096, Payload: 64}),
		runner.WithMaxInputSize(cfg.MaxInputSize),
	)

	if err := d.Handle(ctx, event); err != nil {
		logger.Error("event failed", "err", err)
	}
*/
package runner
