package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mech/config"
)

func TestParseAppliesDefaultsAndUnits(t *testing.T) {
	src := `
[scheduler]
parallel_enabled = true
parallel_threshold = 64
parallel_workers = 8

[[units]]
name = "g"
domain = "mass"
exponent = 0

[[units]]
name = "lb"
domain = "mass"
exponent = 0
`
	cfg, err := config.Parse(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Scheduler.MaxTicks, "max_ticks defaults when omitted")
	assert.True(t, cfg.Scheduler.ParallelEnabled)
	assert.Equal(t, 64, cfg.Scheduler.ParallelThreshold)

	p := cfg.Scheduler.Parallel()
	assert.True(t, p.Enabled)
	assert.Equal(t, 64, p.Threshold)
	assert.Equal(t, 8, p.Workers)

	require.Len(t, cfg.Units, 2)
	assert.Equal(t, "lb", cfg.Units[1].Name)
}

func TestParseRejectsNegativeMaxTicks(t *testing.T) {
	src := `
[scheduler]
max_ticks = -1
`
	_, err := config.Parse(strings.NewReader(src))
	require.Error(t, err)
}

func TestParseRejectsDuplicateUnitNames(t *testing.T) {
	src := `
[[units]]
name = "g"
domain = "mass"

[[units]]
name = "g"
domain = "mass"
`
	_, err := config.Parse(strings.NewReader(src))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/path/mech.toml")
	require.Error(t, err)
}
