package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

func validSettings(t *testing.T) Settings {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranges.csv")
	require.NoError(t, os.WriteFile(path, []byte("start_range,end_range,granularity,rate_id\n0.01,1.00,0.01,\n20,100,-1,\n"), 0o600))
	return Settings{
		OrderName:       "OW_HB",
		AdvertiserName:  "PubMatic",
		TraffickerEmail: "ops@example.com",
		LineItemType:    "PRICE_PRIORITY",
		SetupType:       "web",
		Sizes:           "300x250, 728x90",
		RangesFile:      path,
		Currency:        "USD",
		NumCreatives:    2,
	}
}

func TestSettings_Request(t *testing.T) {
	s := validSettings(t)
	s.VideoPosition = "PREROLL"
	req, err := s.Request()
	require.NoError(t, err)
	assert.Equal(t, models.SetupWeb, req.SetupType)
	assert.Equal(t, []models.Size{{Width: 300, Height: 250}, {Width: 728, Height: 90}}, req.Sizes)
	assert.Len(t, req.Ranges, 2)
	assert.True(t, req.Ranges[1].IsCatchAll())
	assert.Equal(t, 2, req.NumCreatives)
	assert.Equal(t, models.VideoPositionPreroll, req.VideoPosition)
}

func TestSettings_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Settings)
		field string
	}{
		{"missing order", func(s *Settings) { s.OrderName = "" }, "Settings.OrderName"},
		{"bad email", func(s *Settings) { s.TraffickerEmail = "nobody" }, "Settings.TraffickerEmail"},
		{"bad setup type", func(s *Settings) { s.SetupType = "BANNER" }, "Settings.SetupType"},
		{"bad sizes", func(s *Settings) { s.Sizes = "300by250" }, "Settings.Sizes"},
		{"bad line item type", func(s *Settings) { s.LineItemType = "GOLD" }, "Settings.LineItemType"},
		{"lowercase currency", func(s *Settings) { s.Currency = "usd" }, "Settings.Currency"},
		{"exchange without target", func(s *Settings) { s.ExchangeRate = true }, "Settings.TargetCurrency"},
		{"zero duration", func(s *Settings) { s.Durations = []int{15, 0} }, "Settings.Durations[1]"},
		{"bad cache url", func(s *Settings) { s.CacheURL = "not a url" }, "Settings.CacheURL"},
		{"bad position", func(s *Settings) { s.VideoPosition = "ANYWHERE" }, "Settings.VideoPosition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings(t)
			tt.edit(&s)
			err := s.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			require.Len(t, verr.Fields, 1)
			assert.Contains(t, verr.Fields[0], tt.field)
		})
	}
}

func TestSettings_ExchangeWithTarget(t *testing.T) {
	s := validSettings(t)
	s.ExchangeRate = true
	s.TargetCurrency = "INR"
	assert.NoError(t, s.Validate())
}

func TestSettings_MissingRangesFile(t *testing.T) {
	s := validSettings(t)
	s.RangesFile = filepath.Join(t.TempDir(), "nope.csv")
	_, err := s.Request()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load ranges")
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("OWSETUP_ORDER_NAME", "Env Order")
	t.Setenv("OWSETUP_SETUP_TYPE", "ADPOD")
	t.Setenv("OWSETUP_VIDEO_LENGTHS", "15,30")
	t.Setenv("OWSETUP_ADPOD_SLOTS", "1,2")
	t.Setenv("OWSETUP_CREATIVE_TEMPLATE_IDS", "")

	s := LoadSettings()
	assert.Equal(t, "Env Order", s.OrderName)
	assert.Equal(t, "ADPOD", s.SetupType)
	assert.Equal(t, []int{15, 30}, s.Durations)
	assert.Equal(t, []int{1, 2}, s.Slots)
	assert.Equal(t, "PubMatic", s.AdvertiserName)
	assert.Nil(t, s.TemplateIDs)
}
