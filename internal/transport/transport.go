package transport

import "context"

// Transport is the single I/O boundary of the broadcast engine. The
// engine is agnostic to how a chat is opened and the text delivered: a
// deep-link opener, a desktop-automation bridge or a persistent session
// client all satisfy the same contract.
type Transport interface {
	// Ready reports whether the transport can deliver at all. A non-nil
	// error is the fatal precondition that aborts a run before any item
	// is picked up.
	Ready(ctx context.Context) error

	// Send delivers one message to one canonical phone number. The
	// attachment reference may be empty; transports that cannot attach
	// files are free to ignore it.
	Send(ctx context.Context, phone, message, attachment string) error
}
