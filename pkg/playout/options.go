package playout

import "github.com/livekit/protocol/logger"

// An Option configures a Buffer.
type Option func(b *Buffer)

// WithPacketDroppedHandler sets a callback that's called when a packet is
// discarded without being slotted, either for arriving late or for landing
// beyond the slot ceiling.
func WithPacketDroppedHandler(f func()) Option {
	return func(b *Buffer) {
		b.onPacketDropped = f
	}
}

func WithLogger(l logger.Logger) Option {
	return func(b *Buffer) {
		b.logger = l
	}
}
