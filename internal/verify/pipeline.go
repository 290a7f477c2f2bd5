package verify

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/intent"
)

// Outcome is the result of verifying one dataset end to end.
type Outcome struct {
	Topology  *core.Topology
	Instances []intent.Instance
}

// Dataset builds ds, instantiates every intent and evaluates them. A
// structural error in ds aborts before any instance is evaluated.
func Dataset(ctx context.Context, ds *core.Dataset, opts ...Option) (*Outcome, error) {
	v := &Verifier{}
	for _, opt := range opts {
		opt(v)
	}
	topo, err := core.Build(ctx, ds, v.log)
	if err != nil {
		return nil, err
	}
	ver, err := New(ctx, topo, opts...)
	if err != nil {
		return nil, err
	}
	results, err := ver.Run(ctx, intent.Instantiate(topo))
	if err != nil {
		return nil, fmt.Errorf("verify %q: %w", topo.Name(), err)
	}
	return &Outcome{Topology: topo, Instances: results}, nil
}
