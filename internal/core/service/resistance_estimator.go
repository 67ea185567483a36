package service

import (
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSettleVoltageTolerance = 0.005
	defaultSettleCurrentTolerance = 0.2
	defaultMinVoltageSpread       = 0.05
	defaultResistanceWindow       = 30 * time.Second

	// plausibility filter kicks in once this many estimates were collected
	resistancePlausibilityMinSamples = 10
	// accessor trusts the average only above this many estimates
	resistanceMinSamples = 4
)

// ResistanceEstimator derives the series resistance between the voltage
// sense point and the battery cells from naturally occurring load steps.
// Consecutive near-identical samples are treated as settled and averaged
// into one point; the min and max voltage points over a time window give
// the resistance via |dV/dI|. The tolerances are calibrated for lithium
// packs on 12-48V systems and may need tuning per battery interface.
type ResistanceEstimator struct {
	VoltageTolerance     float64
	CurrentTolerance     float64
	MinVoltageSpread     float64
	WindowDuration       time.Duration
	ConfiguredResistance float64
	VerboseLogging       bool
	Logger               *zap.Logger

	average *WeightedAverage[float64]

	firstOfTwoAvailable bool
	firstVoltage        float64
	firstCurrent        float64

	windowAvailable bool
	windowStart     time.Time
	minVoltage      float64
	minCurrent      float64
	maxVoltage      float64
	maxCurrent      float64
}

func NewResistanceEstimator(configuredResistance float64, verbose bool, logger *zap.Logger) *ResistanceEstimator {
	return &ResistanceEstimator{
		VoltageTolerance:     defaultSettleVoltageTolerance,
		CurrentTolerance:     defaultSettleCurrentTolerance,
		MinVoltageSpread:     defaultMinVoltageSpread,
		WindowDuration:       defaultResistanceWindow,
		ConfiguredResistance: configuredResistance,
		VerboseLogging:       verbose,
		Logger:               logger,
		average:              NewWeightedAverage[float64](10),
	}
}

// Update feeds one sample. Returns true when a new resistance estimate was
// accepted into the average this call.
func (e *ResistanceEstimator) Update(voltage, current float64, now time.Time) bool {
	// settle filter: only pairs of near-identical consecutive readings pass
	if !e.firstOfTwoAvailable ||
		math.Abs(voltage-e.firstVoltage) > e.VoltageTolerance ||
		math.Abs(current-e.firstCurrent) > e.CurrentTolerance {
		e.firstVoltage = voltage
		e.firstCurrent = current
		e.firstOfTwoAvailable = true
		return false
	}
	avgVoltage := (voltage + e.firstVoltage) / 2
	avgCurrent := (current + e.firstCurrent) / 2
	e.firstOfTwoAvailable = false

	// min/max accumulation window keyed on voltage
	if !e.windowAvailable {
		e.windowStart = now
		e.minVoltage, e.minCurrent = avgVoltage, avgCurrent
		e.maxVoltage, e.maxCurrent = avgVoltage, avgCurrent
		e.windowAvailable = true
	} else {
		if avgVoltage < e.minVoltage {
			e.minVoltage, e.minCurrent = avgVoltage, avgCurrent
		}
		if avgVoltage > e.maxVoltage {
			e.maxVoltage, e.maxCurrent = avgVoltage, avgCurrent
		}
	}

	if now.Sub(e.windowStart) < e.WindowDuration {
		return false
	}
	return e.closeWindow()
}

func (e *ResistanceEstimator) closeWindow() bool {
	defer e.resetWindow()

	spread := e.maxVoltage - e.minVoltage
	if spread < e.MinVoltageSpread {
		// measurement error dominates below the minimum spread
		return false
	}
	deltaCurrent := e.maxCurrent - e.minCurrent
	if deltaCurrent == 0 {
		return false
	}
	resistance := math.Abs(spread / deltaCurrent)

	if e.average.Count() >= resistancePlausibilityMinSamples {
		avg := e.average.Average()
		if resistance < avg/2 || resistance > avg*2 {
			if e.VerboseLogging {
				e.Logger.Debug("battery_guard: implausible resistance discarded",
					zap.Float64("resistance", resistance), zap.Float64("average", avg))
			}
			return false
		}
	}
	e.average.AddNumber(resistance)
	return true
}

func (e *ResistanceEstimator) resetWindow() {
	e.windowAvailable = false
	e.firstOfTwoAvailable = false
}

// Resistance returns the value the rest of the system should use: the
// weighted average once enough estimates exist, otherwise the configured
// fixed resistance when set.
func (e *ResistanceEstimator) Resistance() (float64, bool) {
	if e.average.Count() > resistanceMinSamples {
		return e.average.Average(), true
	}
	if e.ConfiguredResistance != 0 {
		return e.ConfiguredResistance, true
	}
	return 0, false
}

// CalculatedResistance ignores the configured fallback.
func (e *ResistanceEstimator) CalculatedResistance() (float64, bool) {
	if e.average.Count() == 0 {
		return 0, false
	}
	return e.average.Average(), true
}

func (e *ResistanceEstimator) CalculatedMin() float64 {
	return e.average.Min()
}

func (e *ResistanceEstimator) CalculatedMax() float64 {
	return e.average.Max()
}

func (e *ResistanceEstimator) CalculatedLast() float64 {
	return e.average.Last()
}

func (e *ResistanceEstimator) CalculatedCount() uint {
	return e.average.Count()
}
