package service

import (
	"time"

	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

// BatteryStateEstimator is the per-sample ingestion point composing the
// resistance and open circuit voltage estimators, plus a plain voltage
// average and a smoothed inter-sample period for diagnostics.
type BatteryStateEstimator struct {
	enabled bool
	logger  *zap.Logger

	resistance *ResistanceEstimator
	ocv        *OpenCircuitVoltageEstimator
	voltageAvg *WeightedAverage[float64]
	period     *WeightedAverage[int64]

	lastVoltage   float64
	lastVoltageAt time.Time
	haveSample    bool
	lastCurrent   float64
}

func NewBatteryStateEstimator(cfg config.BatteryGuardConfig, logger *zap.Logger) *BatteryStateEstimator {
	return &BatteryStateEstimator{
		enabled:    cfg.Enable,
		logger:     logger,
		resistance: NewResistanceEstimator(cfg.ConfiguredResistance, cfg.VerboseLogging, logger),
		ocv:        NewOpenCircuitVoltageEstimator(),
		voltageAvg: NewWeightedAverage[float64](10),
		period:     NewWeightedAverage[int64](20),
	}
}

// UpdateBatteryValues ingests one (voltage, current) sample. Resistance is
// refreshed before the OCV estimator consumes the cached accessor value,
// so an estimate closing this very call is already in effect.
func (b *BatteryStateEstimator) UpdateBatteryValues(voltage, current float64, now time.Time) {
	if !b.enabled || voltage < 0 {
		return
	}

	if !b.haveSample {
		b.lastVoltage = voltage
		b.lastVoltageAt = now
		b.haveSample = true
	} else if voltage != b.lastVoltage {
		b.period.AddNumber(now.Sub(b.lastVoltageAt).Milliseconds())
		b.lastVoltage = voltage
		b.lastVoltageAt = now
	}
	b.lastCurrent = current

	b.voltageAvg.AddNumber(voltage)
	b.resistance.Update(voltage, current, now)
	if r, ok := b.resistance.Resistance(); ok {
		b.ocv.Update(voltage, current, r, now)
	}
}

func (b *BatteryStateEstimator) OpenCircuitVoltage(now time.Time) (float64, bool) {
	if !b.enabled {
		return 0, false
	}
	return b.ocv.Voltage(now)
}

func (b *BatteryStateEstimator) InternalResistance() (float64, bool) {
	if !b.enabled {
		return 0, false
	}
	return b.resistance.Resistance()
}

// Report summarizes the estimator internals for the periodic diagnostics
// log and the HTTP status endpoint.
func (b *BatteryStateEstimator) Report(now time.Time) domain.BatteryGuardReport {
	report := domain.BatteryGuardReport{
		ConfiguredResistance: b.resistance.ConfiguredResistance,
	}
	if b.voltageAvg.Count() > 0 {
		report.Voltage = b.voltageAvg.Last()
		report.AveragedVoltage = b.voltageAvg.Average()
	}
	report.OpenCircuitVoltage, report.OpenCircuitVoltageOk = b.ocv.Voltage(now)
	report.NotAvailableCounter = b.ocv.NotAvailableCount()
	report.ResistanceInUse, report.ResistanceInUseOk = b.resistance.Resistance()
	if calc, ok := b.resistance.CalculatedResistance(); ok {
		report.CalculatedResistance = calc
		report.CalculatedMin = b.resistance.CalculatedMin()
		report.CalculatedMax = b.resistance.CalculatedMax()
		report.CalculatedLast = b.resistance.CalculatedLast()
	}
	report.CalculatedCount = b.resistance.CalculatedCount()
	if b.period.Count() > 0 {
		report.SamplePeriodMillis = b.period.Average()
	}
	return report
}

func (b *BatteryStateEstimator) LastSample() (voltage, current float64, ok bool) {
	return b.lastVoltage, b.lastCurrent, b.haveSample
}

func (b *BatteryStateEstimator) Enabled() bool {
	return b.enabled
}
