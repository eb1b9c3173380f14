package creative

import (
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/lineitem"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// Associations pairs every line item with every creative. Video setups
// reference creative sets; ADPOD pairs creative i with durations[i] and the
// matching placeholder targeting name. Every association carries sizes as
// size overrides.
func Associations(st models.SetupType, lineItemIDs, creativeIDs []int64, sizes []models.Size, slot string, durations []int) ([]gam.LICA, error) {
	overrides := make([]gam.Size, 0, len(sizes))
	for _, s := range sizes {
		overrides = append(overrides, gam.Size{Width: s.Width, Height: s.Height})
	}

	if st.Family() == models.FamilyAdPod && len(durations) < len(creativeIDs) {
		return nil, fmt.Errorf("adpod associations: %d creatives but %d durations", len(creativeIDs), len(durations))
	}

	licas := make([]gam.LICA, 0, len(lineItemIDs)*len(creativeIDs))
	for _, li := range lineItemIDs {
		for i, cr := range creativeIDs {
			lica := gam.LICA{LineItemID: li, Sizes: overrides}
			switch st.Family() {
			case models.FamilyVideo:
				lica.CreativeSetID = cr
			case models.FamilyAdPod:
				lica.CreativeSetID = cr
				lica.TargetingName = lineitem.AdPodTargetingName(slot, durations[i])
			default:
				lica.CreativeID = cr
			}
			licas = append(licas, lica)
		}
	}
	return licas, nil
}
