package chain

import (
	"sort"

	"github.com/mrz1836/cryptorpc/internal/transport"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// ErrUnsupportedChain indicates no creator is registered for the chain.
var ErrUnsupportedChain = &rpcerr.RPCError{
	Code:     "UNSUPPORTED_CHAIN",
	Message:  "unsupported chain",
	ExitCode: rpcerr.ExitInput,
}

// Creator builds an adapter for one config over an already dialed transport.
// This allows registering chain-specific constructors without import cycles.
type Creator func(cfg Config, t transport.Transport) (Adapter, error)

// Factory creates chain adapters.
type Factory interface {
	// NewAdapter creates an adapter for the given config.
	NewAdapter(cfg Config, t transport.Transport) (Adapter, error)

	// IsSupported reports whether NewAdapter can build the chain.
	IsSupported(id ID) bool
}

// ConfigurableFactory is a factory that can have chain creators registered.
type ConfigurableFactory struct {
	creators map[ID]Creator
}

// NewConfigurableFactory creates a new configurable factory.
func NewConfigurableFactory() *ConfigurableFactory {
	return &ConfigurableFactory{
		creators: make(map[ID]Creator),
	}
}

// Register adds a chain creator for the given ID.
func (f *ConfigurableFactory) Register(id ID, creator Creator) {
	f.creators[id] = creator
}

// NewAdapter creates an adapter using the registered creator.
func (f *ConfigurableFactory) NewAdapter(cfg Config, t transport.Transport) (Adapter, error) {
	creator, ok := f.creators[cfg.Chain]
	if !ok {
		return nil, f.unsupported(cfg)
	}
	return creator(cfg, t)
}

// IsSupported returns true if the chain ID has a registered creator.
func (f *ConfigurableFactory) IsSupported(id ID) bool {
	_, ok := f.creators[id]
	return ok
}

// SupportedChains returns all registered chain IDs, sorted.
func (f *ConfigurableFactory) SupportedChains() []ID {
	chains := make([]ID, 0, len(f.creators))
	for id := range f.creators {
		chains = append(chains, id)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

func (f *ConfigurableFactory) unsupported(cfg Config) error {
	err := rpcerr.WithDetails(ErrUnsupportedChain, map[string]string{
		"chain":    cfg.Chain.String(),
		"currency": cfg.Currency,
	})
	if ids := f.SupportedChains(); len(ids) > 0 {
		err = rpcerr.WithSuggestion(err, "registered chains: "+JoinIDs(ids))
	}
	return err
}

// Compile-time interface check
var _ Factory = (*ConfigurableFactory)(nil)
