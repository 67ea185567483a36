package service

import (
	"time"
)

const defaultOCVStaleness = 30 * time.Second

// OpenCircuitVoltageEstimator tracks the unloaded battery voltage as
// ocv = V - I*R, with positive current flowing into the battery.
type OpenCircuitVoltageEstimator struct {
	Staleness time.Duration

	average      *WeightedAverage[float64]
	lastUpdate   time.Time
	notAvailable uint
}

func NewOpenCircuitVoltageEstimator() *OpenCircuitVoltageEstimator {
	return &OpenCircuitVoltageEstimator{
		Staleness: defaultOCVStaleness,
		average:   NewWeightedAverage[float64](10),
	}
}

func (e *OpenCircuitVoltageEstimator) Update(voltage, current, resistance float64, now time.Time) {
	e.average.AddNumber(voltage - current*resistance)
	e.lastUpdate = now
}

// Voltage returns the averaged OCV if at least one sample exists and the
// last update is within the staleness window. Absence bumps a diagnostics
// counter.
func (e *OpenCircuitVoltageEstimator) Voltage(now time.Time) (float64, bool) {
	if e.average.Count() == 0 || now.Sub(e.lastUpdate) > e.Staleness {
		e.notAvailable++
		return 0, false
	}
	return e.average.Average(), true
}

func (e *OpenCircuitVoltageEstimator) NotAvailableCount() uint {
	return e.notAvailable
}
