package creative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

func TestAssociations(t *testing.T) {
	sizes := []models.Size{{Width: 300, Height: 250}}
	wantSizes := []gam.Size{{Width: 300, Height: 250}}

	t.Run("display uses creative id", func(t *testing.T) {
		licas, err := Associations(models.SetupWeb, []int64{1, 2}, []int64{10, 11, 12}, sizes, "", nil)
		require.NoError(t, err)
		require.Len(t, licas, 6)
		assert.Equal(t, gam.LICA{LineItemID: 1, CreativeID: 10, Sizes: wantSizes}, licas[0])
		assert.Equal(t, gam.LICA{LineItemID: 2, CreativeID: 12, Sizes: wantSizes}, licas[5])
	})

	t.Run("video uses creative set id", func(t *testing.T) {
		for _, st := range []models.SetupType{models.SetupVideo, models.SetupJWPlayer, models.SetupInAppVideo} {
			licas, err := Associations(st, []int64{1}, []int64{10}, sizes, "", nil)
			require.NoError(t, err)
			assert.Equal(t, gam.LICA{LineItemID: 1, CreativeSetID: 10, Sizes: wantSizes}, licas[0], st)
		}
	})

	t.Run("adpod names each duration", func(t *testing.T) {
		licas, err := Associations(models.SetupAdPod, []int64{1}, []int64{10, 11}, sizes, "s1", []int{10, 15})
		require.NoError(t, err)
		require.Len(t, licas, 2)
		assert.Equal(t, int64(10), licas[0].CreativeSetID)
		assert.Equal(t, "s1_10second_ad", licas[0].TargetingName)
		assert.Equal(t, int64(11), licas[1].CreativeSetID)
		assert.Equal(t, "s1_15second_ad", licas[1].TargetingName)
		assert.Zero(t, licas[1].CreativeID)
	})

	t.Run("adpod requires a duration per creative", func(t *testing.T) {
		_, err := Associations(models.SetupAdPod, []int64{1}, []int64{10, 11}, sizes, "s1", []int{10})
		assert.Error(t, err)
	})
}
