package eventbus

import "errors"

var (
	// ErrChannelFull is returned by Publish when the broadcast channel's
	// buffer is saturated; the event is dropped rather than blocking the
	// publisher.
	ErrChannelFull = errors.New("event channel full, event dropped")

	// ErrClosed is returned by ChannelSubscriber.Send once the subscriber
	// has been closed.
	ErrClosed = errors.New("event bus stopped")
)
