/*
Package domain contains the core domain models of the pizza ordering bot.

It defines the conversation states, the per-user Session, the inbound Event union and
the catalog/cart/location entities exchanged with the commerce backend. This package is
kept pure and free of I/O so that the state machine, the pricing policy and the location
selector can be tested in isolation.

# Key Entities

  - State: a closed set of conversation stages (START, MENU, CART, ...).
  - Session: the persisted per-user snapshot (current State plus scratch data).
  - Event: one inbound user action (text, button payload, shared location, payment result).
  - Reply: a channel-agnostic outbound message produced by the engine.
  - Quote: nearest pizzeria, distance and delivery tier computed for an address.
*/
package domain
