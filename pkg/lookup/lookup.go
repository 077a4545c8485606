// Package lookup resolves collected references (PNRs) into records.
package lookup

import (
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
)

// ValidateReference enforces an exact length of ASCII digits.
// A length of zero or less skips the length check.
func ValidateReference(ref string, length int) error {
	if ref == "" {
		return fmt.Errorf("%w: empty reference", domain.ErrInvalidFormat)
	}
	if length > 0 && len(ref) != length {
		return fmt.Errorf("%w: expected %d digits, got %d", domain.ErrInvalidFormat, length, len(ref))
	}
	for i := 0; i < len(ref); i++ {
		if ref[i] < '0' || ref[i] > '9' {
			return fmt.Errorf("%w: non-digit %q at position %d", domain.ErrInvalidFormat, ref[i], i)
		}
	}
	return nil
}
