/*
Package ports defines the driven ports (interfaces) of the pizza bot.

These interfaces decouple the conversation engine from the commerce backend,
the geocoder, the chat platforms and the session storage.

# Key Interfaces

  - SessionStore: persists the per-user Session.
  - DistributedLocker: serializes events of one user across replicas.
  - Commerce: catalog, cart, customer and location records.
  - Geocoder: free-text address to coordinates.
  - Channel: outbound text, card and location messages of one chat platform.
  - PaymentGateway: hands the checkout over to the payment collaborator.
*/
package ports
