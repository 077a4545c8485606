package lookup

import (
	"context"
	"hash/fnv"

	"github.com/aretw0/callflow/pkg/domain"
)

type flight struct {
	id, origin, destination, status string
}

var flights = []flight{
	{"AI1", "Mumbai", "Chennai", "Confirmed"},
	{"AI2", "Chennai", "Kochi", "Delayed"},
	{"AI3", "Delhi", "Mumbai", "Cancelled"},
	{"AI4", "Kochi", "Bengaluru", "Confirmed"},
	{"AI5", "Hyderabad", "Goa", "Delayed"},
}

// Mock resolves any well-formed reference to a deterministic record.
type Mock struct {
	length int
}

// NewMock creates a resolver expecting references of exactly length digits.
func NewMock(length int) *Mock {
	return &Mock{length: length}
}

// Resolve implements ports.RecordResolver.
func (m *Mock) Resolve(ctx context.Context, ref string) (*domain.Record, error) {
	return m.ResolveLength(ctx, ref, m.length)
}

// ResolveLength validates against an explicit length instead of the configured one.
func (m *Mock) ResolveLength(_ context.Context, ref string, length int) (*domain.Record, error) {
	if err := ValidateReference(ref, length); err != nil {
		return nil, err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(ref))
	f := flights[h.Sum32()%uint32(len(flights))]

	return &domain.Record{
		Reference:   ref,
		Kind:        "flight " + f.id,
		Status:      f.status,
		Origin:      f.origin,
		Destination: f.destination,
	}, nil
}
