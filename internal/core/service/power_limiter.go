package service

import (
	"math"
	"time"

	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/domain"
	"sunwarden2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	// telemetry freshness windows
	inverterStatsStaleAfter = 10 * time.Second
	powerMeterStaleAfter    = 30 * time.Second
	batterySoCFreshWindow   = 60 * time.Second

	// direct solar feed ramp
	directFeedStepPercent = 1.0
	directFeedMaxPercent  = 90.0

	// minimum usable panel power for solar passthrough
	minUsablePanelPowerWatt = 20.0
)

// DefaultPowerLimiterLogic computes a bounded, rate-limited power command
// for the inverter from battery thresholds, solar availability and the
// aggregate power meter. All state transitions happen inside Tick; the
// caller owns telemetry gathering and command delivery.
type DefaultPowerLimiterLogic struct {
	Config config.PowerLimiterConfig
	Logger *zap.Logger

	enabled           bool
	state             domain.PowerLimiterState
	drainStrategy     domain.DrainStrategy
	dischargeEnabled  bool
	directFeedPercent float64
	lastCalcLimit     int32
	lastSentLimit     int32
}

func NewDefaultPowerLimiterLogic(cfg config.PowerLimiterConfig, logger *zap.Logger) *DefaultPowerLimiterLogic {
	return &DefaultPowerLimiterLogic{
		Config:        cfg,
		Logger:        logger,
		enabled:       cfg.Enable,
		state:         domain.PowerLimiterShutdown,
		drainStrategy: domain.ParseDrainStrategy(cfg.DrainStrategy),
		lastCalcLimit: -1,
		lastSentLimit: -1,
	}
}

// Tick runs one control cycle over the given telemetry snapshot. It is
// idempotent when invoked late: no missed-tick compensation, it just taps
// current state.
func (pl *DefaultPowerLimiterLogic) Tick(input domain.PowerLimiterInput, now time.Time) domain.PowerLimiterTickResult {
	result := domain.PowerLimiterTickResult{
		State:             pl.state,
		DischargeEnabled:  pl.dischargeEnabled,
		DirectFeedPercent: pl.directFeedPercent,
	}

	// unreachable inverter: no-op, retried next tick
	if input.Feed == nil {
		return result
	}
	if now.Sub(input.Feed.LastUpdate) > inverterStatsStaleAfter {
		pl.Logger.Debug("power_limiter: inverter stats are stale, skipping tick")
		return result
	}

	if !pl.enabled {
		if input.Feed.Producing {
			// keep stopping until the inverter confirms it is off
			pl.Logger.Info("power_limiter: disabled while producing, stopping inverter")
			result.SendStop = true
			result.State = pl.state
			return result
		}
		if pl.state != domain.PowerLimiterShutdown {
			pl.Logger.Info("power_limiter@active: inverter stopped, entering shutdown")
			pl.state = domain.PowerLimiterShutdown
		}
		result.State = pl.state
		return result
	}

	if pl.state == domain.PowerLimiterShutdown {
		pl.Logger.Info("power_limiter@shutdown: enabled, entering active")
		pl.state = domain.PowerLimiterActive
	}

	pl.updateDirectFeedRamp(input.Solar)
	pl.updateDischargeEnabled(input, now)

	limit := pl.calcPowerLimit(input, now)
	pl.lastCalcLimit = limit

	// never command less than the allowed direct solar contribution
	directWatts := pl.directFeedWatts(input)
	if directWatts > float64(limit) {
		limit = int32(directWatts)
	}

	pl.setNewPowerLimit(limit, input.Feed.Producing, &result)

	result.State = pl.state
	result.DischargeEnabled = pl.dischargeEnabled
	result.DirectFeedPercent = pl.directFeedPercent
	return result
}

// updateDirectFeedRamp ramps the direct solar feed fraction up while the
// charger reports absorption phase, down otherwise. One step per tick
// avoids abrupt load-following jumps at phase boundaries.
func (pl *DefaultPowerLimiterLogic) updateDirectFeedRamp(solar domain.SolarChargerReading) {
	if solar.Absorption {
		pl.directFeedPercent = math.Min(directFeedMaxPercent, pl.directFeedPercent+directFeedStepPercent)
	} else {
		pl.directFeedPercent = math.Max(0, pl.directFeedPercent-directFeedStepPercent)
	}
}

// updateDischargeEnabled applies the hysteresis rules. Once disabled by
// the stop threshold, discharge stays disabled until one of the enable
// rules fires; it never silently re-enables near the stop threshold.
func (pl *DefaultPowerLimiterLogic) updateDischargeEnabled(input domain.PowerLimiterInput, now time.Time) {
	before := pl.dischargeEnabled

	if pl.isStopThresholdReached(input, now) {
		pl.dischargeEnabled = false
	}
	if !pl.canUseDirectSolar(input.Solar) || pl.drainStrategy == domain.DrainEmptyAtNight {
		pl.dischargeEnabled = true
	}
	if pl.drainStrategy == domain.DrainEmptyWhenFull && pl.isStartThresholdReached(input, now) {
		pl.dischargeEnabled = true
	}

	if before != pl.dischargeEnabled {
		pl.Logger.Info("power_limiter@active: battery discharge mode changed",
			zap.Bool("dischargeEnabled", pl.dischargeEnabled))
	}
}

// isStopThresholdReached checks SoC first when it is enabled and fresh,
// otherwise falls back to the load-corrected DC voltage.
func (pl *DefaultPowerLimiterLogic) isStopThresholdReached(input domain.PowerLimiterInput, now time.Time) bool {
	if pl.Config.BatterySoCStopThreshold > 0 && pl.isSoCFresh(input.Battery, now) {
		return input.Battery.SoC <= pl.Config.BatterySoCStopThreshold
	}
	if pl.Config.VoltageStopThreshold <= 0 {
		return false
	}
	return pl.correctedDCVoltage(input.Feed) <= pl.Config.VoltageStopThreshold
}

func (pl *DefaultPowerLimiterLogic) isStartThresholdReached(input domain.PowerLimiterInput, now time.Time) bool {
	if pl.Config.BatterySoCStartThreshold > 0 && pl.isSoCFresh(input.Battery, now) {
		return input.Battery.SoC >= pl.Config.BatterySoCStartThreshold
	}
	if pl.Config.VoltageStartThreshold <= 0 {
		return false
	}
	return pl.correctedDCVoltage(input.Feed) >= pl.Config.VoltageStartThreshold
}

func (pl *DefaultPowerLimiterLogic) isSoCFresh(battery domain.BatterySoCReading, now time.Time) bool {
	return !battery.LastUpdate.IsZero() && now.Sub(battery.LastUpdate) <= batterySoCFreshWindow
}

// correctedDCVoltage compensates the conduction loss the inverter load
// causes on the measured DC bus voltage.
func (pl *DefaultPowerLimiterLogic) correctedDCVoltage(feed *domain.InverterFeed) float64 {
	return feed.DCVoltage + feed.ACPowerWatt*pl.Config.VoltageLoadCorrectionFactor
}

func (pl *DefaultPowerLimiterLogic) canUseDirectSolar(solar domain.SolarChargerReading) bool {
	return !solar.LastUpdate.IsZero() && solar.PanelPowerWatt >= minUsablePanelPowerWatt
}

// calcPowerLimit computes the demand-following limit for this tick.
func (pl *DefaultPowerLimiterLogic) calcPowerLimit(input domain.PowerLimiterInput, now time.Time) int32 {
	// stale meter: fail safe to the floor, never guess with old data
	if input.Meter.LastUpdate.IsZero() || now.Sub(input.Meter.LastUpdate) > powerMeterStaleAfter {
		pl.Logger.Warn("power_limiter@active: power meter data is stale, failing safe",
			zap.Uint32("lowerPowerLimit", pl.Config.LowerPowerLimit))
		return int32(pl.Config.LowerPowerLimit)
	}

	// reuse band: demand close enough to target keeps the previous limit
	if pl.lastCalcLimit >= 0 &&
		math.Abs(input.Meter.PowerWatt-pl.Config.TargetConsumption) <= pl.Config.TargetConsumptionHysteresis {
		return pl.lastCalcLimit
	}

	newLimit := input.Meter.PowerWatt
	if pl.Config.InverterBehindMeter && pl.lastSentLimit > 0 {
		// the meter already sees the inverter output, add the last
		// requested limit back to undo the double counting
		newLimit += float64(pl.lastSentLimit)
	}
	newLimit -= pl.Config.TargetConsumption

	upper := float64(pl.Config.UpperPowerLimit)
	if !pl.dischargeEnabled {
		// solar-only mode: never promise battery power
		upper = math.Min(upper, pl.availableSolarWatts(input))
	}
	newLimit = math.Min(newLimit, upper)
	return int32(newLimit)
}

// availableSolarWatts is the efficiency-adjusted panel power.
func (pl *DefaultPowerLimiterLogic) availableSolarWatts(input domain.PowerLimiterInput) float64 {
	return input.Solar.PanelPowerWatt * pl.inverterEfficiency(input.Feed) / 100
}

func (pl *DefaultPowerLimiterLogic) directFeedWatts(input domain.PowerLimiterInput) float64 {
	return input.Solar.PanelPowerWatt * pl.directFeedPercent / 100 * pl.inverterEfficiency(input.Feed) / 100
}

func (pl *DefaultPowerLimiterLogic) inverterEfficiency(feed *domain.InverterFeed) float64 {
	if feed.EfficiencyPercent > 0 {
		return feed.EfficiencyPercent
	}
	return pl.Config.InverterEfficiencyPercent
}

// setNewPowerLimit turns the computed limit into start/stop/limit commands.
// Sub-floor limits stop the inverter and clamp to the lower bound; the
// limit itself is only transmitted when it changed since the last send.
func (pl *DefaultPowerLimiterLogic) setNewPowerLimit(limit int32, producing bool, result *domain.PowerLimiterTickResult) {
	lower := int32(pl.Config.LowerPowerLimit)
	upper := int32(pl.Config.UpperPowerLimit)

	if limit >= lower {
		if !producing {
			pl.Logger.Info("power_limiter@active: starting inverter", zap.Int32("limit", limit))
			result.SendStart = true
		}
	} else {
		if producing {
			pl.Logger.Info("power_limiter@active: limit below floor, stopping inverter",
				zap.Int32("limit", limit))
		}
		result.SendStop = true
		limit = lower
	}
	if limit > upper {
		limit = upper
	}

	if limit != pl.lastSentLimit {
		result.SendLimit = true
		result.LimitWatt = uint16(limit)
		pl.lastSentLimit = limit
	}
}

func (pl *DefaultPowerLimiterLogic) Enabled() bool {
	return pl.enabled
}

func (pl *DefaultPowerLimiterLogic) SetEnabled(enable bool) bool {
	if pl.enabled == enable {
		return false
	}
	pl.enabled = enable
	pl.Logger.Info("power_limiter: enable changed", zap.Bool("enabled", enable))
	return true
}

func (pl *DefaultPowerLimiterLogic) TargetConsumption() float64 {
	return pl.Config.TargetConsumption
}

func (pl *DefaultPowerLimiterLogic) SetTargetConsumption(watts float64) {
	pl.Config.TargetConsumption = watts
}

func (pl *DefaultPowerLimiterLogic) State() domain.PowerLimiterState {
	return pl.state
}

func (pl *DefaultPowerLimiterLogic) DischargeEnabled() bool {
	return pl.dischargeEnabled
}

func (pl *DefaultPowerLimiterLogic) DirectFeedPercent() float64 {
	return pl.directFeedPercent
}

func (pl *DefaultPowerLimiterLogic) LastRequestedLimit() int32 {
	return pl.lastSentLimit
}

// ensure interface compliance
var _ port.PowerLimiterLogic = (*DefaultPowerLimiterLogic)(nil)
