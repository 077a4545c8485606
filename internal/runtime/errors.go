package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
)

// InternalFault reports a catalog inconsistency met at runtime. Catalog
// validation makes it unreachable for validated catalogs.
type InternalFault struct {
	CallID string
	Menu   string
	Detail string
}

func (f *InternalFault) Error() string {
	return fmt.Sprintf("internal fault on call %s at menu %q: %s", f.CallID, f.Menu, f.Detail)
}

func (f *InternalFault) Unwrap() error {
	return domain.ErrUnknownMenu
}

// IsInternalFault reports whether err is an *InternalFault.
func IsInternalFault(err error) bool {
	var f *InternalFault
	return errors.As(err, &f)
}

// errStaleLookup is returned when a lookup result no longer matches the session.
var errStaleLookup = errors.New("lookup result does not match session state")
