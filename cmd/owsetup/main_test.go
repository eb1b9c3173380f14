package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/config"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
)

func init() {
	newNames = func(logger *zap.Logger, _ config.Config) *macros.Service {
		return macros.NewServiceForTesting(logger)
	}
}

func writeRanges(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranges.csv")
	require.NoError(t, os.WriteFile(path, []byte("start_range,end_range,granularity,rate_id\n0.50,0.70,0.10,\n5,8,-1,\n"), 0o600))
	return path
}

func TestRun_Plan(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"plan",
		"-order", "OW_HB",
		"-advertiser", "PubMatic",
		"-trafficker", "ops@example.com",
		"-setup-type", "WEB",
		"-sizes", "300x250,728x90",
		"-ranges", writeRanges(t),
		"-bidder", "pubmatic",
	}, config.Config{}, zap.NewNop(), &out)
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, ": planned")
	assert.Contains(t, s, "buckets: 4  line items: 4  creatives: 2  associations: 8")
	assert.Contains(t, s, `order "OW_HB": 4 line items`)
	assert.Contains(t, s, "Top Bid: HB $0.50")
	assert.Contains(t, s, "Top Bid: HB $5.00+ (Catch-all 5.00-8.00)")
}

func TestRun_PlanInvalidSettings(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"plan",
		"-order", "OW_HB",
		"-trafficker", "not-an-email",
		"-ranges", writeRanges(t),
	}, config.Config{}, zap.NewNop(), &out)
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
}

func TestRun_PlanBadListFlag(t *testing.T) {
	err := run(context.Background(), []string{"plan", "-durations", "15,abc"}, config.Config{}, zap.NewNop(), &bytes.Buffer{})
	require.Error(t, err)
}

func TestRun_Buckets(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"buckets", "-ranges", writeRanges(t)}, config.Config{}, zap.NewNop(), &out))
	assert.Equal(t, "0.50\t0.10\t10 values\n0.60\t0.10\t10 values\n0.70\t0.10\t1 values\n5.00\t-1\t4 values\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"buckets", "-json", "-ranges", writeRanges(t)}, config.Config{}, zap.NewNop(), &out))
	assert.Contains(t, out.String(), `"start_range": "0.50"`)
}

func TestRun_Usage(t *testing.T) {
	assert.ErrorIs(t, run(context.Background(), nil, config.Config{}, zap.NewNop(), &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"deploy"}, config.Config{}, zap.NewNop(), &bytes.Buffer{}), errUsage)
}

func TestRun_VideoPositionRejectsUnknownPosition(t *testing.T) {
	err := run(context.Background(), []string{"update-video-position", "-order", "x", "-position", "LATE"}, config.Config{}, zap.NewNop(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown video position")
}

func TestParseInts(t *testing.T) {
	got, err := parseInts[int64]("1, 2,,3")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,b,"))
}
