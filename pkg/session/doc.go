/*
Package session serializes access to the per-user conversation snapshot.

Events of the same user must be applied one at a time: two handlers that load
the same snapshot and both save would silently drop one of the updates. The
Manager holds an in-process lock per user key (reference counted, so idle keys
are garbage collected) and, when configured, a distributed lock so that several
bot replicas sharing one store stay consistent.
*/
package session
