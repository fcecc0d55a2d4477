// Package bot turns chat commands into queue transitions and queue outcomes
// into chat messages.
//
// [Service] is the inbound boundary: OnJoinRequest, OnCompleteRequest and
// OnListRequest each apply one engine operation, then announce the result
// through a [Notifier]. Announcements visible to the whole conversation
// go through Notify; replies meant only for the requester go through
// Respond. Timeouts arrive from the engine's timer and are always
// broadcast.
//
// The queue is mutated before any message is sent. A delivery failure is
// returned wrapped in [ErrDelivery] but never rolls the queue back.
package bot
