// Package render turns catalog, cart and quote data into channel-agnostic replies.
//
// Channels decide how a Reply looks; this package only decides what it says
// and which button payloads it carries.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// MaxCards caps a card carousel. Messenger rejects generic templates with more elements.
const MaxCards = 10

// Button titles.
const (
	TitleCart     = "🛒 Cart"
	TitleMenu     = "Menu"
	TitleBack     = "Back"
	TitleAdd      = "Add to cart"
	TitleDetails  = "Details"
	TitleCheckout = "Checkout"
	TitlePickup   = "Pickup"
	TitleDeliver  = "Delivery"
)

func button(title, action, arg string) domain.Button {
	return domain.Button{Title: title, Payload: domain.Payload(action, arg)}
}

// Text builds a plain reply with optional button rows.
func Text(text string, rows ...[]domain.Button) domain.Reply {
	return domain.Reply{Kind: domain.ReplyText, Text: text, Buttons: rows}
}

// Notice builds a short acknowledgement.
func Notice(text string) domain.Reply {
	return domain.Reply{Kind: domain.ReplyNotice, Text: text}
}

// Menu lists products as cards. Categories, when present, are offered as an extra
// button row with the active one left out.
func Menu(products []domain.Product, categories []domain.Category, activeCategory string) domain.Reply {
	cards := make([]domain.Card, 0, min(len(products), MaxCards))
	for _, p := range products {
		if len(cards) == MaxCards {
			break
		}
		cards = append(cards, domain.Card{
			Title:    p.Name,
			Subtitle: p.Price.String(),
			ImageURL: p.ImageURL,
			Buttons: []domain.Button{
				button(TitleDetails, domain.ActionProduct, p.ID),
				button(TitleAdd, domain.ActionAdd, p.ID),
			},
		})
	}

	var rows [][]domain.Button
	var catRow []domain.Button
	for _, c := range categories {
		if c.ID == activeCategory {
			continue
		}
		catRow = append(catRow, button(c.Name, domain.ActionCategory, c.ID))
	}
	if len(catRow) > 0 {
		rows = append(rows, catRow)
	}
	rows = append(rows, []domain.Button{button(TitleCart, domain.ActionCart, "")})

	text := "Please choose a pizza:"
	if len(cards) == 0 {
		text = "The menu is empty right now."
	}
	return domain.Reply{Kind: domain.ReplyCard, Text: text, Cards: cards, Buttons: rows}
}

// ProductDetail describes one product with its picture.
func ProductDetail(p domain.Product) domain.Reply {
	text := fmt.Sprintf("%s\nPrice: %s\n\n%s", p.Name, p.Price, p.Description)
	return domain.Reply{
		Kind:     domain.ReplyCard,
		Text:     text,
		ImageURL: p.ImageURL,
		Buttons: [][]domain.Button{
			{button(TitleAdd, domain.ActionAdd, p.ID)},
			{button(TitleCart, domain.ActionCart, "")},
			{button(TitleBack, domain.ActionBack, "")},
		},
	}
}

// Added acknowledges a cart addition.
func Added(name string) domain.Reply {
	if name == "" {
		return Notice("Added to cart")
	}
	return Notice(name + " added to cart")
}

// CartText lists the cart lines and the total, one paragraph per line.
func CartText(cart domain.Cart) (string, error) {
	total, err := cart.Total()
	if err != nil {
		return "", err
	}
	if cart.IsEmpty() {
		return "Your cart is empty.", nil
	}
	var b strings.Builder
	for _, item := range cart.Items {
		fmt.Fprintf(&b, "%s\n", item.Name)
		if item.Description != "" {
			fmt.Fprintf(&b, "%s\n", item.Description)
		}
		fmt.Fprintf(&b, "%d in cart for %s\n\n", item.Quantity, item.Subtotal())
	}
	fmt.Fprintf(&b, "Total: %s", total)
	return b.String(), nil
}

// Cart renders the cart with a remove button per line.
func Cart(cart domain.Cart) (domain.Reply, error) {
	text, err := CartText(cart)
	if err != nil {
		return domain.Reply{}, err
	}
	var rows [][]domain.Button
	for _, item := range cart.Items {
		rows = append(rows, []domain.Button{
			button("Remove "+item.Name, domain.ActionRemove, item.ID),
			button("+1", domain.ActionAdd, item.ProductID),
		})
	}
	if !cart.IsEmpty() {
		rows = append(rows, []domain.Button{button(TitleCheckout, domain.ActionCheckout, "")})
	}
	rows = append(rows, []domain.Button{button(TitleMenu, domain.ActionMenu, "")})
	return Text(text, rows...), nil
}

// AskEmail prompts for the customer email.
func AskEmail() domain.Reply {
	return Text("Please send your email.")
}

// AskEmailAgain re-prompts after a rejected email.
func AskEmailAgain(email string) domain.Reply {
	return Text(fmt.Sprintf("%q does not look like an email. Please send it again.", email))
}

// AskAddress prompts for the delivery address.
func AskAddress() domain.Reply {
	return Text("Send us your address as text or share your location.")
}

// AddressNotFound re-prompts after a failed geocode.
func AddressNotFound() domain.Reply {
	return Text("We could not find that address. Please try again or share your location.")
}

// Distance formats a distance in metres below one kilometre and kilometres above.
func Distance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

// Undeliverable explains that the address is out of range and offers pickup.
func Undeliverable(q domain.Quote) domain.Reply {
	return Text(fmt.Sprintf(
		"Sorry, we do not deliver that far. The nearest pizzeria is %s away, you can pick your order up at %s.",
		Distance(q.DistanceKm), q.Location.Address,
	))
}

// DeliveryChoice offers pickup or delivery for a deliverable quote.
func DeliveryChoice(q domain.Quote) domain.Reply {
	var text string
	switch q.Tier {
	case domain.TierFree:
		text = fmt.Sprintf(
			"Our pizzeria is only %s away from you, at %s. Pick it up yourself or we deliver for free.",
			Distance(q.DistanceKm), q.Location.Address,
		)
	default:
		text = fmt.Sprintf(
			"The nearest pizzeria is %s away, at %s. Delivery costs %s. Deliver or pick up?",
			Distance(q.DistanceKm), q.Location.Address, q.Fee,
		)
	}
	return Text(text, []domain.Button{
		button(TitlePickup, domain.ActionPickup, ""),
		button(TitleDeliver, domain.ActionDeliver, ""),
	})
}

// ChooseDelivery re-asks for the delivery method.
func ChooseDelivery() domain.Reply {
	return Text("Please choose pickup or delivery.", []domain.Button{
		button(TitlePickup, domain.ActionPickup, ""),
		button(TitleDeliver, domain.ActionDeliver, ""),
	})
}

// UseButtons is sent when free text arrives where only buttons are understood.
func UseButtons() domain.Reply {
	return Text("Please use the buttons above.")
}

// Pickup confirms a pickup order.
func Pickup(address string) domain.Reply {
	return Text(fmt.Sprintf("Thank you! Your order will be waiting for you at %s.", address))
}

// CourierOrder is the order summary sent to the courier of the chosen pizzeria.
func CourierOrder(courier domain.UserRef, customer domain.UserRef, cart domain.Cart, fee domain.Money) (domain.Reply, error) {
	text, err := CartText(cart)
	if err != nil {
		return domain.Reply{}, err
	}
	if !fee.IsZero() {
		text += "\nDelivery: " + fee.String()
	}
	to := courier
	return domain.Reply{
		Kind: domain.ReplyText,
		To:   &to,
		Text: fmt.Sprintf("New order for %s\n\n%s", customer.Name, text),
	}, nil
}

// CourierLocation is the customer pin sent to the courier.
func CourierLocation(courier domain.UserRef, coords domain.Coordinates) domain.Reply {
	to := courier
	return domain.Reply{Kind: domain.ReplyLocation, To: &to, Location: coords}
}

// LocationPin sends a pin to the current user.
func LocationPin(coords domain.Coordinates) domain.Reply {
	return domain.Reply{Kind: domain.ReplyLocation, Location: coords}
}

// AwaitingPayment reminds the user that a payment is pending.
func AwaitingPayment() domain.Reply {
	return Text("We are waiting for your payment. Send /start to cancel the order.")
}

// PaymentReceived thanks the user after a successful payment.
func PaymentReceived() domain.Reply {
	return Text("Payment received, thank you! The courier is on the way.")
}

// PaymentFailed tells the user the payment did not go through.
func PaymentFailed() domain.Reply {
	return Text("The payment did not go through. Here is your cart again.")
}

// TryAgain is sent when a collaborator failed transiently.
func TryAgain() domain.Reply {
	return Text("Something went wrong on our side. Please try again.")
}

// Unavailable is sent when a catalog record or location is missing.
func Unavailable() domain.Reply {
	return Text("This is temporarily unavailable. Please try again later.")
}
