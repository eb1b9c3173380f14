package targeting

import (
	"errors"
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// ErrMatchTypeConflict means the registry already holds the value under the
// same key with another match type.
var ErrMatchTypeConflict = errors.New("targeting value match type conflict")

// ResolutionError means a key or value could not be found or created on the
// remote registry. Value is empty for key resolutions.
type ResolutionError struct {
	Key       string
	Value     string
	MatchType models.MatchType
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("resolve targeting key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("resolve targeting value %s=%q (%s): %v", e.Key, e.Value, e.MatchType, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
