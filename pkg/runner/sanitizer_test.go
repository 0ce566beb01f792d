package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

var bob = domain.UserRef{Channel: "telegram", ID: "7"}

func TestInputLimits_TextCountsCharacters(t *testing.T) {
	limits := InputLimits{Text: 5}

	_, err := limits.Sanitize(domain.NewTextEvent(bob, "пицца"))
	assert.NoError(t, err, "five Cyrillic letters are ten bytes but five characters")

	_, err = limits.Sanitize(domain.NewTextEvent(bob, "пиццы!"))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestInputLimits_PayloadCountsBytes(t *testing.T) {
	limits := InputLimits{Payload: 64}

	_, err := limits.Sanitize(domain.NewButtonEvent(bob, strings.Repeat("a", 64)))
	assert.NoError(t, err)

	_, err = limits.Sanitize(domain.NewButtonEvent(bob, "product;"+strings.Repeat("ж", 29)))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestInputLimits_ZeroMeansUnlimited(t *testing.T) {
	_, err := InputLimits{}.Sanitize(domain.NewTextEvent(bob, strings.Repeat("a", 100_000)))
	assert.NoError(t, err)
}

func TestInputLimits_StripsControlCharacters(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Hello World", "Hello World"},
		{"newline and tab kept", "Line1\nLine2\tTabbed\r", "Line1\nLine2\tTabbed\r"},
		{"escape sequence", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"null byte", "Null\x00Byte", "NullByte"},
		{"bell", "Ding\x07", "Ding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DefaultInputLimits.Sanitize(domain.Event{User: bob, Text: tt.in, Payload: tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Text)
			assert.Equal(t, tt.want, ev.Payload)
		})
	}
}

func TestInputLimits_InvalidUTF8(t *testing.T) {
	_, err := DefaultInputLimits.Sanitize(domain.NewTextEvent(bob, "\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = DefaultInputLimits.Sanitize(domain.NewButtonEvent(bob, "add;\xff"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestInputLimits_CapText(t *testing.T) {
	assert.Equal(t, InputLimits{Text: 10, Payload: 64}, InputLimits{Text: 4096, Payload: 64}.capText(10))
	assert.Equal(t, InputLimits{Text: 100}, InputLimits{Text: 100}.capText(4096))
	assert.Equal(t, InputLimits{Text: 10}, InputLimits{}.capText(10))
	assert.Equal(t, InputLimits{Text: 100}, InputLimits{Text: 100}.capText(0))
}
