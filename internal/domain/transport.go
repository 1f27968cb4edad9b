package domain

import "context"

// StreamHandlers are the callbacks a StreamTransport invokes. They may be
// called from transport goroutines; implementations must hand work off to
// their own executor.
type StreamHandlers struct {
	OnOpen     func()
	OnClose    func()
	OnError    func(err error)
	OnEnvelope func(env Envelope)
	// OnReject reports a frame dropped by validation. Optional.
	OnReject   func(err error)
}

// StreamTransport owns one persistent socket to the telemetry server.
type StreamTransport interface {
	// Connect opens the socket. It never blocks on the network.
	Connect(ctx context.Context)
	// Disconnect closes the socket without triggering auto-reconnect.
	Disconnect()
	// Reconnect forces a fresh connection. A no-op while one is underway.
	Reconnect()
	// Send transmits payload if the socket is open, otherwise it is skipped.
	Send(payload any)
}
