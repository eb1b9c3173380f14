package lineitem

import (
	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// PositionChange is the outcome of retargeting one line item.
type PositionChange int

const (
	PositionUnchanged PositionChange = iota
	PositionAdded
	PositionRewritten
	PositionAmbiguous
)

func (c PositionChange) String() string {
	switch c {
	case PositionAdded:
		return "added"
	case PositionRewritten:
		return "rewritten"
	case PositionAmbiguous:
		return "ambiguous"
	default:
		return "unchanged"
	}
}

func (c PositionChange) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RetargetVideoPosition points li at pos. Line items already targeting pos
// and line items targeting several positions are left alone.
func RetargetVideoPosition(li *gam.LineItem, pos models.VideoPosition) PositionChange {
	vpt := li.Targeting.VideoPositionTargeting
	if vpt == nil || len(vpt.TargetedPositions) == 0 {
		applyPosition(li, pos)
		return PositionAdded
	}
	for _, tp := range vpt.TargetedPositions {
		if tp.VideoPosition.PositionType == string(pos) {
			return PositionUnchanged
		}
	}
	if len(vpt.TargetedPositions) > 1 {
		return PositionAmbiguous
	}
	vpt.TargetedPositions[0].VideoPosition.PositionType = string(pos)
	return PositionRewritten
}
