package ports

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
)

// RecordResolver resolves a collected reference to a record.
// It returns domain.ErrInvalidFormat when the reference fails validation, and
// domain.ErrRecordNotFound when it is well formed but unknown. Any other error is
// a transport failure of the backing system.
type RecordResolver interface {
	Resolve(ctx context.Context, reference string) (*domain.Record, error)
}

// LengthAwareResolver is implemented by resolvers that can validate against the
// length declared by the collecting menu rather than a fixed one.
type LengthAwareResolver interface {
	RecordResolver
	ResolveLength(ctx context.Context, reference string, length int) (*domain.Record, error)
}
