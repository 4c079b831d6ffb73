package core

// Frame is a raw wire payload (one JSON envelope).
type Frame []byte

// SignalSender abstracts the outbound half of the signaling link.
// Send is fire-and-forget: there is no per-message acknowledgment, and
// reliability for idempotent state is achieved by periodic re-announcement.
// Owned by the link; the link must Close() it.
type SignalSender interface {
	// TrySend encodes v and queues it for delivery. It never blocks;
	// a full queue or closed link returns an error.
	TrySend(v any) error
	Close()
}
