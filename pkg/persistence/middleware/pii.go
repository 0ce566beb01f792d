package middleware

import (
	"context"
	"math"
	"strings"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

type piiMiddleware struct {
	next ports.SessionStore
}

// NewPIIMiddleware creates a read-side middleware that masks personal data on
// Load: the e-mail local part, the user name and the precise coordinates.
// Saves pass through untouched, so it is meant for inspection tools only.
func NewPIIMiddleware() Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, key string, sess *domain.Session) error {
	return m.next.Save(ctx, key, sess)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) (*domain.Session, error) {
	sess, err := m.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	// Clone to avoid side effects on stores that hand out shared pointers.
	masked := sess.Clone()
	masked.Email = MaskEmail(masked.Email)
	if masked.User.Name != "" {
		masked.User.Name = "***"
	}
	if masked.Coordinates != nil {
		masked.Coordinates.Latitude = roundTo(masked.Coordinates.Latitude, 2)
		masked.Coordinates.Longitude = roundTo(masked.Coordinates.Longitude, 2)
	}
	return masked, nil
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// MaskEmail keeps the first letter of the local part and the whole domain.
func MaskEmail(email string) string {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		if email == "" {
			return ""
		}
		return "***"
	}
	if local == "" {
		return "***@" + domainPart
	}
	return local[:1] + "***@" + domainPart
}

// roundTo keeps about a kilometre of precision at two digits.
func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
