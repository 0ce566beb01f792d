package pizzabot

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/memory"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"github.com/evgen4ikrus/pizza-bot/pkg/runner"
	"github.com/evgen4ikrus/pizza-bot/pkg/session"
)

// Runner drives a terminal conversation with the engine using the provided IO.
// This allows for easy testing and local runs without a chat platform.
type Runner struct {
	Input  io.Reader
	Output io.Writer
	// Store keeps the session between runs. Defaults to an in-memory store.
	Store  ports.SessionStore
	User   domain.UserRef
	Logger *slog.Logger
	// Render formats message text before it is printed. Nil prints plain text.
	Render func(string) (string, error)
}

// NewRunner creates a Runner for a local user on the given streams.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{
		Input:  in,
		Output: out,
		User:   domain.UserRef{Channel: runner.ConsoleChannel, ID: "local", Name: "Local"},
	}
}

// Run reads events until EOF or ctx is done.
func (r *Runner) Run(ctx context.Context, engine *Engine) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	store := r.Store
	if store == nil {
		store = memory.NewStore()
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	console := runner.NewConsole(r.Input, r.Output)
	console.Render = r.Render
	sessions := session.NewManager(store, session.WithLogger(logger))
	dispatcher := runner.NewDispatcher(engine, sessions,
		runner.WithChannel(console),
		runner.WithPaymentGateway(runner.ConsoleChannel, console),
		runner.WithLogger(logger),
	)
	return console.Run(ctx, dispatcher, r.User)
}
