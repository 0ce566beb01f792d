package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evgen4ikrus/pizza-bot/internal/presentation/graph"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

func TestGenerateMermaid_Shapes(t *testing.T) {
	out := graph.GenerateMermaid(domain.Transitions(), nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `start(("START"))`)
	assert.Contains(t, out, `waiting_email[/"WAITING_EMAIL"/]`)
	assert.Contains(t, out, `cart["CART"]`)
	assert.Contains(t, out, `cart -- "checkout" --> waiting_email`)
	assert.Contains(t, out, `reset{{"/start"}} -.-> menu`)
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(domain.Transitions(), &graph.Overlay{
		Visited: []domain.State{domain.StateMenu, domain.StateMenu, "LEGACY"},
		Current: domain.StateCart,
	})

	assert.Equal(t, 1, strings.Count(out, "class menu visited;"))
	assert.NotContains(t, out, "legacy")
	assert.Contains(t, out, "class cart current;")
}

func TestGenerateMermaid_EscapesLabels(t *testing.T) {
	out := graph.GenerateMermaid([]domain.Edge{{From: domain.StateMenu, To: domain.StateCart, On: `say "cart"`}}, nil)
	assert.Contains(t, out, `menu -- "say 'cart'" --> cart`)
}
