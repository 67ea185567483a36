package service

import (
	"testing"
	"time"

	"sunwarden2mqtt/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLogger = zap.Must(zap.NewDevelopment())

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestWeightedAverageSeedAndSmoothing(t *testing.T) {

	require := require.New(t)

	avg := NewWeightedAverage[float64](10)
	require.EqualValues(0, avg.Count())

	// first sample seeds everything
	avg.AddNumber(10)
	require.EqualValues(1, avg.Count())
	require.EqualValues(10, avg.Average())
	require.EqualValues(10, avg.Min())
	require.EqualValues(10, avg.Max())
	require.EqualValues(10, avg.Last())

	// avg' = 10*0.9 + 20*0.1
	avg.AddNumber(20)
	require.InDelta(11, avg.Average(), 1e-9)
	require.EqualValues(10, avg.Min())
	require.EqualValues(20, avg.Max())
	require.EqualValues(20, avg.Last())
}

func TestSettlePairFilter(t *testing.T) {

	require := require.New(t)

	e := newTestResistanceEstimator(0)

	// first sample becomes pending
	e.Update(24.00, 10.0, t0)
	require.True(e.firstOfTwoAvailable)
	require.False(e.windowAvailable)

	// voltage differs by more than 5mV: replaces the pending sample
	e.Update(24.01, 10.0, t0)
	require.True(e.firstOfTwoAvailable)
	require.False(e.windowAvailable)
	require.EqualValues(24.01, e.firstVoltage)

	// current differs by more than 0.2A: replaces the pending sample
	e.Update(24.01, 10.3, t0)
	require.True(e.firstOfTwoAvailable)
	require.False(e.windowAvailable)

	// within both tolerances: settled pair, window opens
	e.Update(24.012, 10.2, t0)
	require.False(e.firstOfTwoAvailable)
	require.True(e.windowAvailable)
}

func TestResistanceFromLoadStep(t *testing.T) {

	require := require.New(t)

	e := newTestResistanceEstimator(0)

	// settled pair at window open, second settled pair 30s later
	feedSettledPair(e, t0, 24.00, 10.0)
	accepted := feedSettledPair(e, t0.Add(e.WindowDuration), 24.05, 8.0)
	require.True(accepted)

	// |0.05 / -2.0| = 0.025 ohm, first sample accepted unconditionally
	r, ok := e.CalculatedResistance()
	require.True(ok)
	require.InDelta(0.025, r, 1e-6)

	// window resets after every close
	require.False(e.windowAvailable)
}

func TestResistanceMinVoltageSpread(t *testing.T) {

	require := require.New(t)

	e := newTestResistanceEstimator(0)

	// 30mV spread is below the 50mV minimum: skipped
	feedSettledPair(e, t0, 24.00, 10.0)
	accepted := feedSettledPair(e, t0.Add(e.WindowDuration), 24.03, 8.0)
	require.False(accepted)

	_, ok := e.CalculatedResistance()
	require.False(ok)
	require.False(e.windowAvailable)
}

func TestResistancePlausibilityGate(t *testing.T) {

	require := require.New(t)

	e := newTestResistanceEstimator(0)

	// collect 10 estimates of 0.025 ohm
	at := t0
	for i := 0; i < 10; i++ {
		feedSettledPair(e, at, 24.00, 10.0)
		at = at.Add(e.WindowDuration)
		accepted := feedSettledPair(e, at, 24.05, 8.0)
		require.True(accepted)
		at = at.Add(time.Second)
	}
	require.EqualValues(10, e.CalculatedCount())
	avg, _ := e.CalculatedResistance()

	// 0.2 ohm is outside [avg/2, avg*2]: discarded, average unchanged
	feedSettledPair(e, at, 24.00, 10.0)
	at = at.Add(e.WindowDuration)
	accepted := feedSettledPair(e, at, 24.10, 9.5)
	require.False(accepted)
	require.EqualValues(10, e.CalculatedCount())
	got, _ := e.CalculatedResistance()
	require.EqualValues(avg, got)

	// 0.03 ohm is within the band: accepted
	at = at.Add(time.Second)
	feedSettledPair(e, at, 24.00, 10.0)
	at = at.Add(e.WindowDuration)
	accepted = feedSettledPair(e, at, 24.06, 8.0)
	require.True(accepted)
	require.EqualValues(11, e.CalculatedCount())
}

func TestResistanceAccessorFallback(t *testing.T) {

	require := require.New(t)

	// no samples, no configured value: absent
	e := newTestResistanceEstimator(0)
	_, ok := e.Resistance()
	require.False(ok)

	// no samples but configured fixed resistance: fallback
	e = newTestResistanceEstimator(0.02)
	r, ok := e.Resistance()
	require.True(ok)
	require.EqualValues(0.02, r)

	// 4 estimates are not enough, still the configured value
	at := t0
	for i := 0; i < 4; i++ {
		feedSettledPair(e, at, 24.00, 10.0)
		at = at.Add(e.WindowDuration)
		feedSettledPair(e, at, 24.05, 8.0)
		at = at.Add(time.Second)
	}
	r, _ = e.Resistance()
	require.EqualValues(0.02, r)

	// fifth estimate switches the accessor to the calculated average
	feedSettledPair(e, at, 24.00, 10.0)
	at = at.Add(e.WindowDuration)
	feedSettledPair(e, at, 24.05, 8.0)
	r, ok = e.Resistance()
	require.True(ok)
	require.InDelta(0.025, r, 1e-6)
}

func TestOCVStaleness(t *testing.T) {

	require := require.New(t)

	e := NewOpenCircuitVoltageEstimator()

	// no samples yet
	_, ok := e.Voltage(t0)
	require.False(ok)
	require.EqualValues(1, e.NotAvailableCount())

	// ocv = 25.0 - 5.0*0.02
	e.Update(25.0, 5.0, 0.02, t0)
	v, ok := e.Voltage(t0.Add(10 * time.Second))
	require.True(ok)
	require.InDelta(24.9, v, 1e-9)

	// within the 30s window
	_, ok = e.Voltage(t0.Add(30 * time.Second))
	require.True(ok)

	// beyond it
	_, ok = e.Voltage(t0.Add(31 * time.Second))
	require.False(ok)
	require.EqualValues(2, e.NotAvailableCount())
}

func TestBatteryStateEstimatorGuards(t *testing.T) {

	require := require.New(t)

	// disabled: accessors always absent
	disabled := NewBatteryStateEstimator(config.BatteryGuardConfig{Enable: false, ConfiguredResistance: 0.02}, testLogger)
	disabled.UpdateBatteryValues(25.0, 5.0, t0)
	_, ok := disabled.OpenCircuitVoltage(t0)
	require.False(ok)
	_, ok = disabled.InternalResistance()
	require.False(ok)

	// negative voltage samples are dropped
	b := NewBatteryStateEstimator(config.BatteryGuardConfig{Enable: true, ConfiguredResistance: 0.02}, testLogger)
	b.UpdateBatteryValues(-1.0, 5.0, t0)
	_, ok = b.OpenCircuitVoltage(t0)
	require.False(ok)

	// with a configured resistance the OCV is available from the first sample
	b.UpdateBatteryValues(25.0, 5.0, t0)
	v, ok := b.OpenCircuitVoltage(t0)
	require.True(ok)
	require.InDelta(24.9, v, 1e-9)
	r, ok := b.InternalResistance()
	require.True(ok)
	require.EqualValues(0.02, r)
}

func TestBatteryStateEstimatorReport(t *testing.T) {

	require := require.New(t)

	b := NewBatteryStateEstimator(config.BatteryGuardConfig{Enable: true, ConfiguredResistance: 0.02}, testLogger)
	b.UpdateBatteryValues(25.0, 5.0, t0)
	b.UpdateBatteryValues(25.1, 5.0, t0.Add(2*time.Second))

	report := b.Report(t0.Add(3 * time.Second))
	require.EqualValues(25.1, report.Voltage)
	require.True(report.OpenCircuitVoltageOk)
	require.True(report.ResistanceInUseOk)
	require.EqualValues(0.02, report.ResistanceInUse)
	require.EqualValues(0.02, report.ConfiguredResistance)
	require.EqualValues(0, report.CalculatedCount)
	require.EqualValues(2000, report.SamplePeriodMillis)
}

// Helpers

func newTestResistanceEstimator(configured float64) *ResistanceEstimator {
	return NewResistanceEstimator(configured, true, testLogger)
}

// feedSettledPair sends the same sample twice so the settle filter emits
// one averaged point. Returns whether an estimate was accepted.
func feedSettledPair(e *ResistanceEstimator, at time.Time, voltage, current float64) bool {
	accepted := e.Update(voltage, current, at)
	return e.Update(voltage, current, at) || accepted
}
