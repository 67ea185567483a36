package hoymiles_modbus

// TestDTUModbusReader is an in-memory reader used by tests. Commands mutate
// its state so a test can assert what the controller sent.
type TestDTUModbusReader struct {
	Producing   bool
	ACPowerWatt float64
	DCVoltage   float64
	DCCurrent   float64

	StartCount int
	StopCount  int
	Limits     []uint16
	LimitTypes []PowerLimitType
}

func CreateTestDTUModbusReader() *TestDTUModbusReader {
	return &TestDTUModbusReader{
		Producing:   true,
		ACPowerWatt: 285.5,
		DCVoltage:   24.8,
		DCCurrent:   12.1,
	}
}

func (dtu *TestDTUModbusReader) Open() error {
	return nil
}

func (dtu *TestDTUModbusReader) Close() error {
	return nil
}

func (dtu *TestDTUModbusReader) Validate() error {
	return nil
}

func (dtu *TestDTUModbusReader) GetInfo() (*DTUInfo, error) {
	return &DTUInfo{
		Manufacturer: "Hoymiles",
		Model:        "DTU",
		Version:      "1.0.12",
		Serial:       "116180001234",
		PortCount:    1,
	}, nil
}

func (dtu *TestDTUModbusReader) GetFeed() (*InverterFeed, error) {
	dcPower := dtu.DCVoltage * dtu.DCCurrent
	efficiency := float64(0)
	if dcPower > 0 {
		efficiency = dtu.ACPowerWatt / dcPower * 100
	}
	status := uint16(0)
	if dtu.Producing {
		status = operStatusProducing
	}
	return &InverterFeed{
		Producing:          dtu.Producing,
		ACPowerWatt:        dtu.ACPowerWatt,
		DCVoltage:          dtu.DCVoltage,
		DCCurrent:          dtu.DCCurrent,
		DCPowerWatt:        dcPower,
		GridFrequencyHz:    50,
		TemperatureCelsius: 41.5,
		EfficiencyPercent:  efficiency,
		OperatingStatus:    status,
	}, nil
}

func (dtu *TestDTUModbusReader) StartInverter() error {
	dtu.StartCount++
	dtu.Producing = true
	return nil
}

func (dtu *TestDTUModbusReader) StopInverter() error {
	dtu.StopCount++
	dtu.Producing = false
	dtu.ACPowerWatt = 0
	return nil
}

func (dtu *TestDTUModbusReader) SetPowerLimit(watts uint16, limitType PowerLimitType) error {
	dtu.Limits = append(dtu.Limits, watts)
	dtu.LimitTypes = append(dtu.LimitTypes, limitType)
	return nil
}
