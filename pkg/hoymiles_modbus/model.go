package hoymiles_modbus

// DTUInfo identifies the DTU gateway and the microinverter behind it.
type DTUInfo struct {
	Manufacturer string
	Model        string
	Version      string
	Serial       string
	PortCount    uint
}

// InverterFeed is one telemetry snapshot of the microinverter port data.
type InverterFeed struct {
	Producing          bool
	ACPowerWatt        float64
	DCVoltage          float64
	DCCurrent          float64
	DCPowerWatt        float64
	GridFrequencyHz    float64
	TemperatureCelsius float64
	EfficiencyPercent  float64
	OperatingStatus    uint16
	AlarmCode          uint16
}

// PowerLimitType selects how the DTU interprets a limit command.
type PowerLimitType uint16

const (
	PowerLimitAbsoluteNonPersistent PowerLimitType = 0x0000
	PowerLimitRelativeNonPersistent PowerLimitType = 0x0001
	PowerLimitAbsolutePersistent    PowerLimitType = 0x0100
	PowerLimitRelativePersistent    PowerLimitType = 0x0101
)

type DTUModbusReader interface {
	Open() error
	Close() error
	Validate() error
	GetInfo() (*DTUInfo, error)
	GetFeed() (*InverterFeed, error)
	StartInverter() error
	StopInverter() error
	SetPowerLimit(watts uint16, limitType PowerLimitType) error
}
