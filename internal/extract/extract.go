package extract

import (
	"context"
	"fmt"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
)

// Resolver turns a job spec into the list of elementary streams to
// fetch. This is the only point where job-specific network topology
// enters the engine.
type Resolver interface {
	Resolve(ctx context.Context, spec domain.JobSpec) ([]domain.StreamDescriptor, error)
}

// Direct resolves descriptors from the already-resolved per-kind
// source URLs carried in the spec itself.
type Direct struct{}

// NewDirect creates a Direct resolver.
func NewDirect() Direct {
	return Direct{}
}

// Resolve maps each spec source to one StreamDescriptor. Stream IDs are
// the kind name, suffixed with an index when a kind appears more than
// once. Local paths are assigned later by the job runner.
func (Direct) Resolve(_ context.Context, spec domain.JobSpec) ([]domain.StreamDescriptor, error) {
	if len(spec.Sources) == 0 {
		return nil, fmt.Errorf("no stream sources in spec")
	}

	seen := make(map[domain.StreamKind]int)
	descs := make([]domain.StreamDescriptor, 0, len(spec.Sources))
	for _, src := range spec.Sources {
		seen[src.Kind]++
		id := string(src.Kind)
		if n := seen[src.Kind]; n > 1 {
			id = fmt.Sprintf("%s_%d", src.Kind, n)
		}
		descs = append(descs, domain.StreamDescriptor{
			ID:             id,
			Kind:           src.Kind,
			URL:            src.URL,
			RangeSupported: true,
		})
	}

	return descs, nil
}
