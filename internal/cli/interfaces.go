package cli

import (
	"github.com/mrz1836/cryptorpc/internal/api"
	"github.com/mrz1836/cryptorpc/internal/events"
	"github.com/mrz1836/cryptorpc/internal/gateway"
)

// Compile-time interface checks.
var _ Facade = (*gateway.Gateway)(nil)

// Facade is the gateway surface commands depend on.
// This interface enables swapping the node-backed gateway for a stub in tests.
type Facade interface {
	api.Gateway

	// Events subscribes to batch progress for currency.
	Events(currency string) (<-chan events.Event, func(), error)

	// Close releases node connections.
	Close() error
}
