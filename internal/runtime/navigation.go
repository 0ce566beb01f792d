package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/render"
)

// handleStart ignores the content and shows the menu.
func (e *Engine) handleStart(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	return e.toMenu(ctx, s, "")
}

func (e *Engine) toMenu(ctx context.Context, s *domain.Session, categoryID string, before ...domain.Reply) domain.Outcome {
	reply, category, err := e.menu(ctx, categoryID)
	if err != nil {
		return fail(err)
	}
	s.State = domain.StateMenu
	s.Category = category
	s.ProductID = ""
	return domain.Advance(s, append(before, reply)...)
}

func (e *Engine) toCart(ctx context.Context, s *domain.Session, before ...domain.Reply) domain.Outcome {
	reply, _, err := e.cartView(ctx, s)
	if err != nil {
		return fail(err)
	}
	s.State = domain.StateCart
	return domain.Advance(s, append(before, reply)...)
}

func (e *Engine) handleMenu(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	if ev.Kind != domain.EventButton {
		reply, _, err := e.menu(ctx, s.Category)
		if err != nil {
			return fail(err)
		}
		return domain.Retry(nil, reply)
	}

	action, arg := domain.ParsePayload(ev.Payload)
	switch action {
	case domain.ActionCart:
		return e.toCart(ctx, s)
	case domain.ActionMenu, domain.ActionBack:
		return e.toMenu(ctx, s, s.Category)
	case domain.ActionCategory:
		return e.toMenu(ctx, s, arg)
	case domain.ActionAdd:
		if err := e.addToCart(ctx, s, arg); err != nil {
			return fail(err)
		}
		return domain.Advance(s, render.Added(""))
	}

	productID := action
	if action == domain.ActionProduct {
		productID = arg
	}
	return e.showProduct(ctx, s, productID)
}

func (e *Engine) showProduct(ctx context.Context, s *domain.Session, productID string) domain.Outcome {
	if productID == "" {
		return domain.Retry(nil, render.UseButtons())
	}
	callCtx, cancel := e.call(ctx)
	defer cancel()

	product, err := e.commerce.Product(callCtx, productID)
	if err != nil {
		return fail(err)
	}
	s.State = domain.StateProductDetail
	s.ProductID = product.ID
	return domain.Advance(s, render.ProductDetail(product))
}

func (e *Engine) handleProductDetail(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	if ev.Kind != domain.EventButton {
		return domain.Retry(nil, render.UseButtons())
	}

	action, arg := domain.ParsePayload(ev.Payload)
	switch action {
	case domain.ActionBack, domain.ActionMenu:
		return e.toMenu(ctx, s, s.Category)
	case domain.ActionCart:
		return e.toCart(ctx, s)
	case domain.ActionCategory:
		return e.toMenu(ctx, s, arg)
	}

	// A bare payload is a product id to add.
	productID := action
	switch {
	case action == domain.ActionAdd, action == domain.ActionProduct:
		productID = arg
	case arg != "":
		return domain.Retry(nil, render.UseButtons())
	}
	if productID == "" {
		productID = s.ProductID
	}
	if productID == "" {
		return domain.Retry(nil, render.UseButtons())
	}
	if err := e.addToCart(ctx, s, productID); err != nil {
		return fail(err)
	}
	return domain.Advance(s, render.Added(""))
}

func (e *Engine) handleCart(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	if ev.Kind != domain.EventButton {
		return e.stayInCart(ctx, s)
	}

	action, arg := domain.ParsePayload(ev.Payload)
	switch action {
	case domain.ActionMenu, domain.ActionBack:
		return e.toMenu(ctx, s, s.Category)
	case domain.ActionCheckout:
		cart, err := e.cart(ctx, s)
		if err != nil {
			return fail(err)
		}
		if cart.IsEmpty() {
			reply, err := render.Cart(cart)
			if err != nil {
				return fail(err)
			}
			return domain.Retry(nil, reply)
		}
		s.State = domain.StateWaitingEmail
		return domain.Advance(s, render.AskEmail())
	case domain.ActionAdd:
		if err := e.addToCart(ctx, s, arg); err != nil {
			return fail(err)
		}
		return e.toCart(ctx, s)
	case domain.ActionCategory:
		return e.toMenu(ctx, s, arg)
	case domain.ActionProduct:
		return e.showProduct(ctx, s, arg)
	}

	// A bare payload is a cart item id to remove.
	itemID := action
	switch {
	case action == domain.ActionRemove:
		itemID = arg
	case arg != "":
		return e.stayInCart(ctx, s)
	}
	if itemID == "" {
		return e.stayInCart(ctx, s)
	}
	callCtx, cancel := e.call(ctx)
	err := e.commerce.RemoveFromCart(callCtx, s.User.Key(), itemID)
	cancel()
	if err != nil {
		return fail(err)
	}
	return e.toCart(ctx, s)
}

// stayInCart shows the cart again without changing the session.
func (e *Engine) stayInCart(ctx context.Context, s *domain.Session) domain.Outcome {
	reply, _, err := e.cartView(ctx, s)
	if err != nil {
		return fail(err)
	}
	return domain.Retry(nil, reply)
}

func (e *Engine) handleWaitingEmail(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	email := strings.TrimSpace(ev.Text)
	if ev.Kind != domain.EventText || email == "" {
		return domain.Retry(nil, render.AskEmail())
	}

	callCtx, cancel := e.call(ctx)
	defer cancel()

	customer, err := e.commerce.CreateCustomer(callCtx, customerName(s.User), email)
	if err != nil {
		return fail(err, render.AskEmailAgain(email))
	}
	s.Email = email
	s.CustomerID = customer.ID
	s.State = domain.StateWaitingAddress
	return domain.Advance(s, render.AskAddress())
}

func (e *Engine) handleWaitingAddress(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	var coords domain.Coordinates
	switch ev.Kind {
	case domain.EventLocation:
		if ev.Location == nil || !ev.Location.Valid() {
			return domain.Retry(nil, render.AddressNotFound())
		}
		coords = *ev.Location
	case domain.EventText:
		address := strings.TrimSpace(ev.Text)
		if address == "" {
			return domain.Retry(nil, render.AskAddress())
		}
		callCtx, cancel := e.call(ctx)
		found, ok, err := e.geocoder.Geocode(callCtx, address)
		cancel()
		if err != nil {
			return fail(err)
		}
		if !ok {
			return domain.Retry(nil, render.AddressNotFound())
		}
		coords = found
	default:
		return domain.Retry(nil, render.AskAddress())
	}

	callCtx, cancel := e.call(ctx)
	locations, err := e.commerce.Locations(callCtx)
	cancel()
	if err != nil {
		return fail(err)
	}
	quote, err := e.policy.Quote(coords, locations)
	if err != nil {
		return fail(err)
	}

	if !quote.Tier.Deliverable() {
		return domain.Retry(nil, render.Undeliverable(quote), render.AskAddress())
	}

	s.Coordinates = &coords
	s.LocationID = quote.Location.ID
	s.LocationAddress = quote.Location.Address
	s.CourierID = quote.Location.CourierID
	s.DeliveryFee = quote.Fee
	s.State = domain.StateWaitingDeliveryChoice
	return domain.Advance(s, render.DeliveryChoice(quote))
}

func (e *Engine) handleDeliveryChoice(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	action, _ := domain.ParsePayload(ev.Input())
	switch {
	case ev.Kind == domain.EventButton && action == domain.ActionPickup:
		return e.pickup(ctx, s)
	case ev.Kind == domain.EventButton && action == domain.ActionDeliver:
		return e.deliver(ctx, s)
	}
	return domain.Retry(nil, render.ChooseDelivery())
}

func (e *Engine) pickup(ctx context.Context, s *domain.Session) domain.Outcome {
	callCtx, cancel := e.call(ctx)
	locations, err := e.commerce.Locations(callCtx)
	cancel()
	if err != nil {
		return fail(err)
	}

	replies := []domain.Reply{render.Pickup(s.LocationAddress)}
	for _, loc := range locations {
		if loc.ID == s.LocationID {
			replies = append(replies, render.LocationPin(loc.Coordinates))
			break
		}
	}

	s.ClearCheckout()
	s.State = domain.StateStart
	return domain.Advance(s, replies...)
}

func (e *Engine) deliver(ctx context.Context, s *domain.Session) domain.Outcome {
	if s.Coordinates == nil {
		// Only reachable through a hand-edited or truncated session.
		s.State = domain.StateWaitingAddress
		return domain.Advance(s, render.AskAddress())
	}

	cart, err := e.cart(ctx, s)
	if err != nil {
		return fail(err)
	}
	if cart.IsEmpty() {
		return e.toCart(ctx, s)
	}
	payment, err := e.paymentFor(cart, s.DeliveryFee)
	if err != nil {
		return fail(err)
	}

	callCtx, cancel := e.call(ctx)
	err = e.commerce.CreateCustomerAddress(callCtx, domain.CustomerAddress{
		CustomerID:  s.CustomerID,
		UserKey:     s.User.Key(),
		Coordinates: *s.Coordinates,
		LocationID:  s.LocationID,
	})
	cancel()
	if err != nil {
		return fail(err)
	}

	var replies []domain.Reply
	if s.CourierID != "" {
		courier := domain.UserRef{Channel: s.User.Channel, ID: s.CourierID}
		order, err := render.CourierOrder(courier, domain.UserRef{Channel: s.User.Channel, ID: s.User.ID, Name: customerName(s.User)}, cart, s.DeliveryFee)
		if err != nil {
			return fail(err)
		}
		replies = append(replies, order, render.CourierLocation(courier, *s.Coordinates))
	} else {
		e.logger.Warn("Pizzeria has no courier", "user", s.User.Key(), "location", s.LocationID)
	}

	s.State = domain.StateWaitingPayment
	out := domain.Advance(s, replies...)
	out.Payment = payment
	return out
}

// paymentFor builds the payment request: one line per cart item plus delivery.
func (e *Engine) paymentFor(cart domain.Cart, fee domain.Money) (*domain.PaymentRequest, error) {
	total, err := cart.Total()
	if err != nil {
		return nil, err
	}
	lines := make([]domain.PaymentLine, 0, len(cart.Items)+1)
	for _, item := range cart.Items {
		lines = append(lines, domain.PaymentLine{
			Label:  fmt.Sprintf("%s x%d", item.Name, item.Quantity),
			Amount: item.Subtotal(),
		})
	}
	if !fee.IsZero() {
		if total, err = total.Add(fee); err != nil {
			return nil, err
		}
		lines = append(lines, domain.PaymentLine{Label: "Delivery", Amount: fee})
	}
	if total.Amount <= 0 {
		return nil, errors.New("refusing to request a non-positive payment")
	}
	text, err := render.CartText(cart)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentRequest{
		ID:          e.newPaymentID(),
		Title:       e.paymentTitle,
		Description: text,
		Total:       total,
		Lines:       lines,
	}, nil
}

func (e *Engine) handleWaitingPayment(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	if ev.Kind != domain.EventPayment {
		return domain.Retry(nil, render.AwaitingPayment())
	}
	s.ClearCheckout()
	if ev.PaymentSucceeded {
		return e.toMenu(ctx, s, "", render.PaymentReceived())
	}
	return e.toCart(ctx, s, render.PaymentFailed())
}
