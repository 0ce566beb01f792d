package pizzabot_test

import (
	"context"
	"fmt"
	"log"

	pizzabot "github.com/evgen4ikrus/pizza-bot"
	"github.com/evgen4ikrus/pizza-bot/internal/testutils"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// ExampleNew_memory walks one user from the first message to the delivery choice
// against an in-memory catalog.
func ExampleNew_memory() {
	geocoder := &testutils.Geocoder{Known: map[string]domain.Coordinates{
		"Moscow, Red Square": testutils.RedSquare,
	}}
	engine, err := pizzabot.New(testutils.Catalog(), geocoder)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	ann := domain.UserRef{Channel: "console", ID: "1", Name: "Ann"}
	events := []domain.Event{
		domain.NewTextEvent(ann, "/start"),
		domain.NewButtonEvent(ann, "add;margherita"),
		domain.NewButtonEvent(ann, "cart"),
		domain.NewButtonEvent(ann, "checkout"),
		domain.NewTextEvent(ann, "ann@example.com"),
		domain.NewTextEvent(ann, "Moscow, Red Square"),
	}

	var sess *domain.Session
	for _, ev := range events {
		out := engine.Step(ctx, sess, ev)
		if out.Kind == domain.OutcomeAdvance {
			sess = out.Session
		}
		fmt.Println(out.Kind, out.NextState(sess.State))
	}

	// Output:
	// advance MENU
	// advance MENU
	// advance CART
	// advance WAITING_EMAIL
	// advance WAITING_ADDRESS
	// advance WAITING_DELIVERY_CHOICE
}
