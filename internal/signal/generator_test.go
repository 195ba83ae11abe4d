package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func feedPrices(t *testing.T, g *Generator, prices []float64) []Kind {
	t.Helper()
	var kinds []Kind
	for _, p := range prices {
		_, err := g.Update(p)
		require.NoError(t, err)
		if sig := g.Signal(testTime); sig != nil {
			kinds = append(kinds, sig.Kind)
		}
	}
	return kinds
}

func TestNewGenerator_ValidatesThresholds(t *testing.T) {
	cases := []struct {
		name        string
		entry, exit float64
		wantErr     bool
	}{
		{"valid", 2.0, 0.5, false},
		{"exit zero", 2.0, 0, true},
		{"exit negative", 2.0, -0.5, true},
		{"entry equals exit", 1.0, 1.0, true},
		{"entry below exit", 0.5, 2.0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGenerator(20, tc.entry, tc.exit)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewGenerator_ValidatesLookback(t *testing.T) {
	_, err := NewGenerator(1, 2.0, 0.5)
	assert.Error(t, err)
}

func TestGenerator_NoSignalDuringWarmup(t *testing.T) {
	g, err := NewGenerator(10, 2.0, 0.5)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		_, err := g.Update(100 + float64(i))
		require.NoError(t, err)
		assert.Nil(t, g.Signal(testTime), "no signal before window full")
	}
}

func TestGenerator_ShortEntryOnHighZScore(t *testing.T) {
	g, err := NewGenerator(10, 2.0, 0.5)
	require.NoError(t, err)

	// Flat window, then a spike: z goes strongly positive.
	prices := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 120}
	kinds := feedPrices(t, g, prices)

	require.Equal(t, []Kind{EnterShort}, kinds)
	assert.Equal(t, Short, g.Side())
}

func TestGenerator_LongEntryOnLowZScore(t *testing.T) {
	g, err := NewGenerator(10, 2.0, 0.5)
	require.NoError(t, err)

	prices := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 80}
	kinds := feedPrices(t, g, prices)

	require.Equal(t, []Kind{EnterLong}, kinds)
	assert.Equal(t, Long, g.Side())
}

func TestGenerator_HysteresisSingleEntrySingleExit(t *testing.T) {
	g, err := NewGenerator(10, 2.0, 0.5)
	require.NoError(t, err)

	// Push z above the entry threshold with a spike, then let the price fall
	// back to the rolling mean. Exactly one ENTER_SHORT and one EXIT must
	// come out, no matter how many bars the excursion lasts.
	var kinds []Kind
	prices := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 120, 102, 101, 102, 101.5}
	for _, p := range prices {
		_, err := g.Update(p)
		require.NoError(t, err)
		if sig := g.Signal(testTime); sig != nil {
			kinds = append(kinds, sig.Kind)
		}
	}

	var entries, exits int
	for i, k := range kinds {
		switch k {
		case EnterShort:
			entries++
		case Exit:
			exits++
			assert.Greater(t, i, 0, "exit cannot precede entry")
		case EnterLong:
			t.Fatalf("unexpected ENTER_LONG in sequence %v", kinds)
		}
	}
	assert.Equal(t, 1, entries, "signals: %v", kinds)
	assert.Equal(t, 1, exits, "signals: %v", kinds)
	assert.Equal(t, Flat, g.Side())
}

func TestGenerator_NoDuplicateSameSideEntries(t *testing.T) {
	g, err := NewGenerator(10, 2.0, 0.5)
	require.NoError(t, err)

	// Every bar after warmup keeps z above the exit band.
	prices := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 120, 125, 130, 135, 140}
	kinds := feedPrices(t, g, prices)

	shortEntries := 0
	for _, k := range kinds {
		if k == EnterShort {
			shortEntries++
		}
	}
	assert.Equal(t, 1, shortEntries, "repeated entry-zone bars must not re-enter: %v", kinds)
}

func TestGenerator_SideFlipWithoutIntermediateExit(t *testing.T) {
	g, err := NewGenerator(4, 1.2, 0.4)
	require.NoError(t, err)

	// An opposite-side entry is allowed while holding a position; the
	// tracked side flips directly from SHORT to LONG.
	_, err = g.Update(100)
	require.NoError(t, err)
	_, err = g.Update(100.1)
	require.NoError(t, err)
	_, err = g.Update(100)
	require.NoError(t, err)

	_, err = g.Update(103)
	require.NoError(t, err)
	sig := g.Signal(testTime)
	require.NotNil(t, sig)
	require.Equal(t, EnterShort, sig.Kind)

	// Collapse far below the rolling mean.
	_, err = g.Update(80)
	require.NoError(t, err)
	sig = g.Signal(testTime)
	require.NotNil(t, sig)
	assert.Equal(t, EnterLong, sig.Kind)
	assert.Equal(t, Long, g.Side())
}

func TestGenerator_ZeroVarianceEmitsNothing(t *testing.T) {
	g, err := NewGenerator(5, 2.0, 0.5)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := g.Update(5000)
		require.NoError(t, err)
		assert.Nil(t, g.Signal(testTime), "z=0 with FLAT side emits nothing")
	}
	assert.Equal(t, Flat, g.Side())
}

func TestGenerator_RejectedSampleLeavesStateIntact(t *testing.T) {
	g, err := NewGenerator(3, 2.0, 0.5)
	require.NoError(t, err)

	_, err = g.Update(100)
	require.NoError(t, err)

	_, err = g.Update(badFloat())
	assert.Error(t, err)
	assert.False(t, g.Ready())
	assert.Equal(t, Flat, g.Side())
}

func TestGenerator_SignalCarriesReasonAndTimestamp(t *testing.T) {
	g, err := NewGenerator(5, 1.5, 0.5)
	require.NoError(t, err)

	prices := []float64{100, 100.1, 100, 100.1, 100, 104}
	var last *Signal
	for _, p := range prices {
		_, err := g.Update(p)
		require.NoError(t, err)
		if sig := g.Signal(testTime); sig != nil {
			last = sig
		}
	}

	require.NotNil(t, last)
	assert.Equal(t, EnterShort, last.Kind)
	assert.NotEmpty(t, last.Reason)
	assert.Equal(t, testTime, last.Timestamp)
	assert.GreaterOrEqual(t, last.ZScore, 1.5)
}

func badFloat() float64 {
	var zero float64
	return 1 / zero * 0 // NaN
}
