package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

var (
	ErrInputTooLarge = errors.New("input too large")
	ErrInvalidUTF8   = errors.New("input is not valid UTF-8")
)

// InputLimits bounds what a user can send. Text is counted in characters,
// the way chat platforms count it; button payloads in bytes. Zero means no limit.
type InputLimits struct {
	Text    int
	Payload int
}

// DefaultInputLimits applies to channels registered without their own limits.
var DefaultInputLimits = InputLimits{Text: 4096, Payload: 1024}

// capText lowers the text limit to max when max is set and tighter.
func (l InputLimits) capText(max int) InputLimits {
	if max > 0 && (l.Text == 0 || l.Text > max) {
		l.Text = max
	}
	return l
}

// Sanitize rejects oversized or malformed input and drops control characters
// other than newline, tab and carriage return.
func (l InputLimits) Sanitize(ev domain.Event) (domain.Event, error) {
	var err error
	if ev.Text, err = clean(ev.Text, l.Text, utf8.RuneCountInString); err != nil {
		return ev, fmt.Errorf("text: %w", err)
	}
	if ev.Payload, err = clean(ev.Payload, l.Payload, func(s string) int { return len(s) }); err != nil {
		return ev, fmt.Errorf("payload: %w", err)
	}
	return ev, nil
}

func clean(s string, limit int, size func(string) int) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}
	if n := size(s); limit > 0 && n > limit {
		return "", fmt.Errorf("%w: %d over the limit of %d", ErrInputTooLarge, n, limit)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return -1
		}
		return r
	}, s), nil
}
