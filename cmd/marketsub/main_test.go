package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketrelay/internal/infrastructure/config"
)

func TestSplitTopics(t *testing.T) {
	assert.Equal(t, []string{"Trade - XBT/USD", "OHLC - XBT/USD - Minute"},
		splitTopics(" Trade - XBT/USD ,, OHLC - XBT/USD - Minute"))
	assert.Empty(t, splitTopics(""))
}

func TestDefaultTopics(t *testing.T) {
	cfg, err := config.Parse(`
[feed]
pairs = ["XBT/USD"]
kinds = ["trade", "ohlc", "book"]
ohlc_intervals = [60, 1440]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Trade - XBT/USD",
		"OHLC - XBT/USD - Hourly",
		"OHLC - XBT/USD - Daily",
	}, defaultTopics(cfg))
}
