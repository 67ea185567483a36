package service

import (
	"testing"
	"time"

	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLimiterConfig() config.PowerLimiterConfig {
	return config.PowerLimiterConfig{
		Enable:                      true,
		IntervalMillis:              10000,
		BatterySoCStartThreshold:    90,
		BatterySoCStopThreshold:     20,
		VoltageStartThreshold:       26.0,
		VoltageStopThreshold:        23.0,
		VoltageLoadCorrectionFactor: 0.001,
		LowerPowerLimit:             50,
		UpperPowerLimit:             800,
		TargetConsumption:           20,
		TargetConsumptionHysteresis: 10,
		InverterBehindMeter:         false,
		InverterEfficiencyPercent:   94,
		DrainStrategy:               config.DRAIN_STRATEGY_EMPTY_WHEN_FULL,
	}
}

func newTestLimiter(mutate func(*config.PowerLimiterConfig)) *DefaultPowerLimiterLogic {
	cfg := testLimiterConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewDefaultPowerLimiterLogic(cfg, zap.Must(zap.NewDevelopment()))
}

type tickParams struct {
	producing  bool
	meterWatt  float64
	meterAge   time.Duration
	soc        float64
	socAge     time.Duration
	panelWatt  float64
	absorption bool
	noSolar    bool
}

func tickInput(now time.Time, p tickParams) domain.PowerLimiterInput {
	input := domain.PowerLimiterInput{
		Feed: &domain.InverterFeed{
			Producing:   p.producing,
			ACPowerWatt: 200,
			DCVoltage:   25.0,
			LastUpdate:  now,
		},
		Battery: domain.BatterySoCReading{SoC: p.soc, LastUpdate: now.Add(-p.socAge)},
		Meter:   domain.PowerMeterReading{PowerWatt: p.meterWatt, LastUpdate: now.Add(-p.meterAge)},
	}
	if !p.noSolar {
		input.Solar = domain.SolarChargerReading{
			PanelPowerWatt: p.panelWatt,
			Absorption:     p.absorption,
			LastUpdate:     now,
		}
	}
	return input
}

func TestTickNoOpWhenInverterUnreachable(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	input := tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50})
	input.Feed = nil
	r := pl.Tick(input, now)
	require.True(r.NoOp())
	require.Equal(domain.PowerLimiterShutdown, r.State)
}

func TestTickNoOpWhenStatsStale(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	input := tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50})
	input.Feed.LastUpdate = now.Add(-11 * time.Second)
	r := pl.Tick(input, now)
	require.True(r.NoOp())
}

func TestStaleMeterFailSafe(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// meter 31s old, lower limit 50: the sent limit is exactly 50
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 4000, meterAge: 31 * time.Second, soc: 50, panelWatt: 500}), now)
	require.True(r.SendLimit)
	require.EqualValues(50, r.LimitWatt)
	require.False(r.SendStop)
}

func TestReuseBandIdempotence(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// meter 400W, target 20: limit = 380
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50}), now)
	require.True(r.SendLimit)
	require.EqualValues(380, r.LimitWatt)

	// any demand within [target-hyst, target+hyst] keeps the limit as is
	for _, demand := range []float64{10, 15, 20, 25, 30} {
		now = now.Add(10 * time.Second)
		r = pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: demand, soc: 50}), now)
		require.False(r.SendLimit, "demand %f must not change the limit", demand)
		require.EqualValues(380, pl.LastRequestedLimit())
	}

	// outside the band the limit follows demand again
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 200, soc: 50}), now)
	require.True(r.SendLimit)
	require.EqualValues(180, r.LimitWatt)
}

func TestBoundsRespected(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// demand above the upper bound: clamped to upper
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 2000, soc: 50}), now)
	require.True(r.SendLimit)
	require.EqualValues(800, r.LimitWatt)

	// sub-floor demand: stop command plus limit clamped to lower
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 55, soc: 50}), now)
	require.True(r.SendStop)
	require.True(r.SendLimit)
	require.EqualValues(50, r.LimitWatt)
}

func TestStartCommandWhenNotProducing(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	r := pl.Tick(tickInput(now, tickParams{producing: false, meterWatt: 400, soc: 50}), now)
	require.True(r.SendStart)
	require.True(r.SendLimit)
	require.EqualValues(380, r.LimitWatt)
	require.Equal(domain.PowerLimiterActive, r.State)
}

func TestDischargeHysteresisLatch(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// usable solar keeps the force-enable rule out of the way
	solar := func(soc float64) domain.PowerLimiterInput {
		return tickInput(now, tickParams{producing: true, meterWatt: 400, soc: soc, panelWatt: 300})
	}

	// SoC 19 <= stop threshold 20: discharge disabled
	r := pl.Tick(solar(19), now)
	require.False(r.DischargeEnabled)

	// SoC 50: stays disabled, no silent re-enable below the start threshold
	now = now.Add(10 * time.Second)
	r = pl.Tick(solar(50), now)
	require.False(r.DischargeEnabled)

	// SoC 91 >= start threshold 90: re-enabled
	now = now.Add(10 * time.Second)
	r = pl.Tick(solar(91), now)
	require.True(r.DischargeEnabled)
}

func TestDischargeForcedWithoutUsableSolar(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// below stop threshold but no usable panel power: force-enabled
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 19, panelWatt: 5}), now)
	require.True(r.DischargeEnabled)
}

func TestDischargeForcedByEmptyAtNight(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(func(cfg *config.PowerLimiterConfig) {
		cfg.DrainStrategy = config.DRAIN_STRATEGY_EMPTY_AT_NIGHT
	})
	require.Equal(domain.DrainEmptyAtNight, pl.drainStrategy)

	now := t0

	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 19, panelWatt: 300}), now)
	require.True(r.DischargeEnabled)
}

func TestDrainStrategyParsing(t *testing.T) {

	require := require.New(t)

	require.Equal(domain.DrainEmptyWhenFull, domain.ParseDrainStrategy(config.DRAIN_STRATEGY_EMPTY_WHEN_FULL))
	require.Equal(domain.DrainEmptyAtNight, domain.ParseDrainStrategy(config.DRAIN_STRATEGY_EMPTY_AT_NIGHT))
	// unknown values fall back to the conservative strategy
	require.Equal(domain.DrainEmptyWhenFull, domain.ParseDrainStrategy("whatever"))

	pl := newTestLimiter(nil)
	require.Equal(domain.DrainEmptyWhenFull, pl.drainStrategy)
}

func TestSolarOnlyModeCapsAtPanelPower(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// demand 380 but SoC 19 latches solar-only mode: only 100W of panel
	// power at 94% efficiency may be promised
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 19, panelWatt: 100}), now)
	require.False(r.DischargeEnabled)
	require.True(r.SendLimit)
	require.EqualValues(94, r.LimitWatt)

	// unchanged limit is not retransmitted
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50, panelWatt: 100}), now)
	require.False(r.SendLimit)
	require.EqualValues(94, pl.LastRequestedLimit())
}

func TestVoltageFallbackWhenSoCStale(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// SoC 61s old: corrected voltage decides instead.
	// 25.0 + 200*0.001 = 25.2 > stop threshold 23.0, discharge not stopped,
	// and with usable solar plus EMPTY_WHEN_FULL it stays in its prior mode
	input := tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 10, socAge: 61 * time.Second, panelWatt: 5})
	r := pl.Tick(input, now)
	require.True(r.DischargeEnabled) // forced by unusable solar

	// low DC voltage trips the stop threshold once solar is usable again
	now = now.Add(10 * time.Second)
	input = tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 10, socAge: 61 * time.Second, panelWatt: 300})
	input.Feed.DCVoltage = 22.5
	input.Feed.ACPowerWatt = 100
	r = pl.Tick(input, now)
	require.False(r.DischargeEnabled)
}

func TestDirectFeedRamp(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// ramps up 1% per tick while in absorption phase
	for i := 1; i <= 3; i++ {
		r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 95, panelWatt: 600, absorption: true}), now)
		require.EqualValues(float64(i), r.DirectFeedPercent)
		now = now.Add(10 * time.Second)
	}

	// ramps down once absorption ends
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 95, panelWatt: 600}), now)
	require.EqualValues(2, r.DirectFeedPercent)

	// capped at 90%
	pl.directFeedPercent = 90
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 95, panelWatt: 600, absorption: true}), now)
	require.EqualValues(90, r.DirectFeedPercent)
}

func TestDirectFeedIsTheFloor(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	pl.directFeedPercent = 50
	now := t0

	// demand only 100W but the direct feed allows 600*0.51*0.94 = 287W
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 120, soc: 95, panelWatt: 600, absorption: true}), now)
	require.True(r.SendLimit)
	assert.EqualValues(t, 287, r.LimitWatt)
}

func TestInverterBehindMeterAddsBack(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(func(cfg *config.PowerLimiterConfig) {
		cfg.InverterBehindMeter = true
	})
	now := t0

	// first tick, nothing sent before: limit = 400 - 20
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50}), now)
	require.EqualValues(380, r.LimitWatt)

	// the meter now shows residual demand only; the last sent limit is
	// added back before subtracting the target: 100 + 380 - 20 = 460
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 100, soc: 50}), now)
	require.True(r.SendLimit)
	require.EqualValues(460, r.LimitWatt)
}

func TestDisableStopsInverterThenLatchesShutdown(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	now := t0

	// reach active first
	pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50}), now)
	require.Equal(domain.PowerLimiterActive, pl.State())

	require.True(pl.SetEnabled(false))
	require.False(pl.SetEnabled(false))

	// still producing: stop is issued every tick, state unchanged
	now = now.Add(10 * time.Second)
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50}), now)
	require.True(r.SendStop)
	require.Equal(domain.PowerLimiterActive, r.State)

	// telemetry confirms the stop: shutdown is latched
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: false, meterWatt: 400, soc: 50}), now)
	require.False(r.SendStop)
	require.Equal(domain.PowerLimiterShutdown, r.State)

	// re-enabling leaves shutdown on the next tick
	require.True(pl.SetEnabled(true))
	now = now.Add(10 * time.Second)
	r = pl.Tick(tickInput(now, tickParams{producing: false, meterWatt: 400, soc: 50}), now)
	require.Equal(domain.PowerLimiterActive, r.State)
	require.True(r.SendStart)
}

func TestSetTargetConsumption(t *testing.T) {

	require := require.New(t)

	pl := newTestLimiter(nil)
	require.EqualValues(20, pl.TargetConsumption())
	pl.SetTargetConsumption(75)
	require.EqualValues(75, pl.TargetConsumption())

	now := t0
	r := pl.Tick(tickInput(now, tickParams{producing: true, meterWatt: 400, soc: 50}), now)
	require.EqualValues(325, r.LimitWatt)
}
