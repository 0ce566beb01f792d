package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// ConsoleChannel is the channel tag of console users.
const ConsoleChannel = "console"

// Console line prefixes.
const (
	prefixButton   = "#"
	prefixLocation = "@"
	prefixPayment  = "$"
)

// EventHandler consumes inbound events. Dispatcher implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// Console is a terminal chat channel. Lines typed by the user become events:
//
//	#payload        button press
//	@55.75,37.62    shared location
//	$ok, $fail      payment result
//	anything else   text message
type Console struct {
	Reader *bufio.Reader
	Writer io.Writer
	// Render formats message text for the terminal, e.g. as markdown.
	// Nil prints text as is.
	Render func(string) (string, error)

	mu   sync.Mutex
	self string
}

// NewConsole creates a console channel on the given streams.
func NewConsole(r io.Reader, w io.Writer) *Console {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &Console{Reader: bufio.NewReader(r), Writer: w}
}

// Name implements ports.Channel.
func (c *Console) Name() string { return ConsoleChannel }

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Writer, format, args...)
}

// header marks messages addressed to someone other than the console user, such as couriers.
func (c *Console) header(to domain.UserRef) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to.ID == c.self {
		return ""
	}
	return "[to " + to.Key() + "] "
}

func (c *Console) text(s string) string {
	s = strings.TrimSpace(s)
	if c.Render == nil || s == "" {
		return s
	}
	out, err := c.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

func formatButtons(rows [][]domain.Button) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(" ")
		for _, btn := range row {
			fmt.Fprintf(&b, " [%s #%s]", btn.Title, btn.Payload)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SendText implements ports.Channel.
func (c *Console) SendText(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	c.printf("%s%s\n%s", c.header(to), c.text(reply.Text), formatButtons(reply.Buttons))
	return nil
}

// SendCard implements ports.Channel.
func (c *Console) SendCard(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	var b strings.Builder
	b.WriteString(c.header(to))
	b.WriteString(c.text(reply.Text))
	b.WriteString("\n")
	if reply.ImageURL != "" {
		fmt.Fprintf(&b, "  (image %s)\n", reply.ImageURL)
	}
	for _, card := range reply.Cards {
		fmt.Fprintf(&b, "* %s", card.Title)
		if card.Subtitle != "" {
			fmt.Fprintf(&b, " - %s", card.Subtitle)
		}
		b.WriteString("\n")
		b.WriteString(formatButtons([][]domain.Button{card.Buttons}))
	}
	b.WriteString(formatButtons(reply.Buttons))
	c.printf("%s", b.String())
	return nil
}

// SendLocation implements ports.Channel.
func (c *Console) SendLocation(ctx context.Context, to domain.UserRef, coords domain.Coordinates) error {
	c.printf("%s(location %s)\n", c.header(to), coords)
	return nil
}

// RequestPayment implements ports.PaymentGateway by printing the bill.
func (c *Console) RequestPayment(ctx context.Context, to domain.UserRef, req domain.PaymentRequest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", req.Title, req.ID)
	for _, line := range req.Lines {
		fmt.Fprintf(&b, "  %s: %s\n", line.Label, line.Amount)
	}
	fmt.Fprintf(&b, "  Total: %s\nType $ok to pay or $fail to decline.\n", req.Total)
	c.printf("%s", b.String())
	return nil
}

// ParseLine converts a console line into an event. ok is false for blank lines.
func ParseLine(user domain.UserRef, line string) (ev domain.Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return domain.Event{}, false, nil
	case strings.HasPrefix(line, prefixButton):
		return domain.NewButtonEvent(user, strings.TrimPrefix(line, prefixButton)), true, nil
	case strings.HasPrefix(line, prefixPayment):
		switch strings.TrimPrefix(line, prefixPayment) {
		case "ok":
			return domain.NewPaymentEvent(user, true), true, nil
		case "fail":
			return domain.NewPaymentEvent(user, false), true, nil
		}
		return domain.Event{}, false, fmt.Errorf("unknown payment result %q", line)
	case strings.HasPrefix(line, prefixLocation):
		lat, lon, found := strings.Cut(strings.TrimPrefix(line, prefixLocation), ",")
		if !found {
			return domain.Event{}, false, fmt.Errorf("location must be @lat,lon, got %q", line)
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err := errors.Join(err1, err2); err != nil {
			return domain.Event{}, false, fmt.Errorf("invalid location %q: %w", line, err)
		}
		return domain.NewLocationEvent(user, domain.Coordinates{Latitude: la, Longitude: lo}), true, nil
	}
	return domain.NewTextEvent(user, line), true, nil
}

// Run reads lines until EOF or ctx is done, feeding them to h as events of user.
func (c *Console) Run(ctx context.Context, h EventHandler, user domain.UserRef) error {
	user.Channel = ConsoleChannel
	c.mu.Lock()
	c.self = user.ID
	c.mu.Unlock()

	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		for {
			text, err := c.Reader.ReadString('\n')
			if text != "" {
				select {
				case lines <- text:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errc <- err
				}
				return
			}
		}
	}()

	for {
		c.printf("> ")
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line, open := <-lines:
			if !open {
				select {
				case err := <-errc:
					return err
				default:
				}
				c.printf("\n")
				return nil
			}
			ev, ok, err := ParseLine(user, line)
			if err != nil {
				c.printf("%v\n", err)
				continue
			}
			if !ok {
				continue
			}
			if err := h.Handle(ctx, ev); err != nil {
				c.printf("error: %v\n", err)
			}
		}
	}
}
