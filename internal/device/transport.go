// Package device carries bridge events between paired watches and the bridge.
package device

import (
	"context"

	"pathbridge/internal/bridge"
)

// DispatchFunc receives decoded device events.
type DispatchFunc func(ctx context.Context, ev bridge.Event)

// Transport is a device link. Run blocks until ctx is done or the link fails.
type Transport interface {
	bridge.Sender
	Run(ctx context.Context, dispatch DispatchFunc) error
	IsConnected() bool
}
