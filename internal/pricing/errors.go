package pricing

import (
	"errors"
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// ErrNoRanges is returned when a run is started without any price range.
var ErrNoRanges = errors.New("no price ranges supplied")

// InvalidRangeError reports a range that cannot be expanded, such as a
// granularity that rounds to zero cents or an end below the start.
type InvalidRangeError struct {
	Index  int
	Range  models.PriceRange
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid price range %d (%s-%s step %s): %s",
		e.Index, e.Range.Start.String(), e.Range.End.String(), e.Range.Granularity.String(), e.Reason)
}
