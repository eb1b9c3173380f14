package lineitem

import (
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// Name returns the line item name for a bucket, e.g. "Top Bid: HB $1.25" or
// "pm_Top Bid: HB $20.00+ (Catch-all 20.00-50.00)".
func Name(prefix string, b models.PriceBucket) string {
	name := "Top Bid: HB $" + b.StartRange
	if b.IsCatchAll {
		name = fmt.Sprintf("%s+ (Catch-all %s-%s)", name, b.StartRange, b.EndRange)
	}
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name
}
