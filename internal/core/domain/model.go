package domain

import (
	"time"
)

// DrainStrategy selects how aggressively the battery may be emptied once
// the power limiter is allowed to discharge it.
type DrainStrategy int

const (
	// DrainEmptyWhenFull only re-enables battery discharge once the start
	// threshold (battery full enough) has been reached again.
	DrainEmptyWhenFull DrainStrategy = iota
	// DrainEmptyAtNight keeps battery discharge enabled whenever solar
	// power cannot cover the load directly.
	DrainEmptyAtNight
)

func (s DrainStrategy) String() string {
	switch s {
	case DrainEmptyAtNight:
		return "empty_at_night"
	default:
		return "empty_when_full"
	}
}

// ParseDrainStrategy maps the config string to the enum. Unknown values
// fall back to the conservative empty-when-full strategy.
func ParseDrainStrategy(s string) DrainStrategy {
	if s == DrainEmptyAtNight.String() {
		return DrainEmptyAtNight
	}
	return DrainEmptyWhenFull
}

// BatterySample is one timestamped (voltage, current) measurement from the
// BMS/shunt bridge. Positive current flows into the battery.
type BatterySample struct {
	Voltage   float64
	Current   float64
	Timestamp time.Time
}

// BatterySoCReading carries the state of charge with its own timestamp,
// since SoC usually arrives on a slower cadence than voltage/current.
type BatterySoCReading struct {
	SoC        float64
	LastUpdate time.Time
}

// PowerMeterReading is the aggregate load/grid power, summed over the
// configured meter topics. Staleness checks are the consumer's concern.
type PowerMeterReading struct {
	PowerWatt  float64
	LastUpdate time.Time
}

// SolarChargerReading mirrors what a Victron-style MPPT charger reports.
type SolarChargerReading struct {
	PanelPowerWatt float64
	Absorption     bool
	LastUpdate     time.Time
}

// InverterFeed is the microinverter telemetry snapshot read from the DTU.
type InverterFeed struct {
	Producing          bool
	ACPowerWatt        float64
	DCVoltage          float64
	DCPowerWatt        float64
	TemperatureCelsius float64
	EfficiencyPercent  float64
	LastUpdate         time.Time
}

// PowerLimiterState is the top-level controller state. The nested
// discharge-enabled flag lives beside it, not inside it.
type PowerLimiterState int

const (
	PowerLimiterShutdown PowerLimiterState = iota
	PowerLimiterActive
)

func (s PowerLimiterState) String() string {
	switch s {
	case PowerLimiterActive:
		return "active"
	default:
		return "shutdown"
	}
}

// PowerLimiterInput is the read-only telemetry snapshot consumed by one
// control tick. A nil Feed means the inverter is unreachable.
type PowerLimiterInput struct {
	Feed    *InverterFeed
	Battery BatterySoCReading
	Solar   SolarChargerReading
	Meter   PowerMeterReading
}

// PowerLimiterTickResult describes what a control tick decided: which
// commands to issue and the resulting controller state.
type PowerLimiterTickResult struct {
	SendStart bool
	SendStop  bool
	SendLimit bool
	LimitWatt uint16

	State             PowerLimiterState
	DischargeEnabled  bool
	DirectFeedPercent float64
}

// NoOp reports whether the tick decided to do nothing at all.
func (r PowerLimiterTickResult) NoOp() bool {
	return !r.SendStart && !r.SendStop && !r.SendLimit
}

// BatteryGuardReport is the periodic diagnostics summary of the estimators.
type BatteryGuardReport struct {
	Voltage         float64
	AveragedVoltage float64

	OpenCircuitVoltage   float64
	OpenCircuitVoltageOk bool

	ResistanceInUse      float64
	ResistanceInUseOk    bool
	CalculatedResistance float64
	CalculatedMin        float64
	CalculatedMax        float64
	CalculatedLast       float64
	CalculatedCount      uint
	ConfiguredResistance float64

	SamplePeriodMillis  int64
	NotAvailableCounter uint
}
