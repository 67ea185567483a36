package hoymiles_modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	log "github.com/sirupsen/logrus"
)

// Register layout of the Hoymiles DTU Modbus TCP bridge. Port data blocks
// start at dtuModbusBlocks.data and repeat every portBlockStride registers.
type dtuModbusBlocks struct {
	dtu     uint16
	data    uint16
	control uint16
}

const (
	portBlockStride = 0x0028

	// offsets within a port data block
	offDataType     = 0x00
	offSerial       = 0x01
	offPVVoltage    = 0x05
	offPVCurrent    = 0x06
	offGridVoltage  = 0x07
	offGridFreq     = 0x08
	offACPower      = 0x09
	offTemperature  = 0x0E
	offOperStatus   = 0x0F
	offAlarmCode    = 0x10
	offLinkStatus   = 0x12

	// offsets within the control block
	offCtrlOnOff      = 0x00
	offCtrlLimit      = 0x01
	offCtrlLimitType  = 0x02

	ctrlValueStart = 1
	ctrlValueStop  = 2

	dataTypeMicroinverter = 0x3C
	operStatusProducing   = 3

	// MaxPowerLimitWatt is the largest limit the 0.1 W control register
	// can hold (0xFFFF / 10).
	MaxPowerLimitWatt = 6553
)

type DTUIntModbusReader struct {
	ModbusClient

	logger       *log.Logger
	blocks       dtuModbusBlocks
	ignoreVendor bool
}

func (dtu *DTUIntModbusReader) Open() error {
	return dtu.client.Open()
}

func (dtu DTUIntModbusReader) Close() error {
	return dtu.client.Close()
}

func (dtu DTUIntModbusReader) Validate() error {
	// check port data type
	if !dtu.ignoreVendor {
		dataType, err := dtu.readRegister(dtu.blocks.data+offDataType, modbus.HOLDING_REGISTER)
		if err != nil {
			return err
		}
		if dataType != dataTypeMicroinverter {
			return errors.New("could not find a Hoymiles microinverter")
		}
	}
	return nil
}

func (dtu DTUIntModbusReader) GetInfo() (*DTUInfo, error) {
	serialRegs, err := dtu.readRegisters(dtu.blocks.data+offSerial, 3, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	version, err := dtu.readRegister(dtu.blocks.dtu+2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	ports, err := dtu.readRegister(dtu.blocks.dtu+4, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	return &DTUInfo{
		Manufacturer: "Hoymiles",
		Model:        "DTU",
		Version:      fmt.Sprintf("%d.%d.%d", version>>12, (version>>8)&0x0F, version&0xFF),
		Serial:       fmt.Sprintf("%04x%04x%04x", serialRegs[0], serialRegs[1], serialRegs[2]),
		PortCount:    uint(ports),
	}, nil
}

func (dtu DTUIntModbusReader) GetFeed() (*InverterFeed, error) {
	regs, err := dtu.readRegisters(dtu.blocks.data+offPVVoltage, 14, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}

	dcVoltage := dtu.applyScale(regs[offPVVoltage-offPVVoltage], 1)
	dcCurrent := dtu.applyScale(regs[offPVCurrent-offPVVoltage], 2)
	gridFreq := dtu.applyScale(regs[offGridFreq-offPVVoltage], 2)
	acPower := dtu.applyScale(regs[offACPower-offPVVoltage], 1)
	temperature := dtu.applyScaleInt16(int16(regs[offTemperature-offPVVoltage]), 1)
	status := regs[offOperStatus-offPVVoltage]
	alarm := regs[offAlarmCode-offPVVoltage]

	dcPower := dcVoltage * dcCurrent
	efficiency := float64(0)
	if dcPower > 0 {
		efficiency = acPower / dcPower * 100
	}

	return &InverterFeed{
		Producing:          status == operStatusProducing && acPower > 0,
		ACPowerWatt:        acPower,
		DCVoltage:          dcVoltage,
		DCCurrent:          dcCurrent,
		DCPowerWatt:        dcPower,
		GridFrequencyHz:    gridFreq,
		TemperatureCelsius: temperature,
		EfficiencyPercent:  efficiency,
		OperatingStatus:    status,
		AlarmCode:          alarm,
	}, nil
}

func (dtu DTUIntModbusReader) StartInverter() error {
	return dtu.writeRegister(dtu.blocks.control+offCtrlOnOff, ctrlValueStart)
}

func (dtu DTUIntModbusReader) StopInverter() error {
	return dtu.writeRegister(dtu.blocks.control+offCtrlOnOff, ctrlValueStop)
}

func (dtu DTUIntModbusReader) SetPowerLimit(watts uint16, limitType PowerLimitType) error {
	if watts > MaxPowerLimitWatt {
		return fmt.Errorf("power limit %dW exceeds the register maximum of %dW", watts, MaxPowerLimitWatt)
	}
	// limit register takes 0.1 W units, type register must be written in the
	// same transaction or the DTU falls back to the persisted default
	data := []uint16{watts * 10, uint16(limitType)}
	return dtu.writeRegisters(dtu.blocks.control+offCtrlLimit, data)
}

func traceLoggerInstrumentation(logger *log.Entry) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Tracef("modbus [%s]: %d millis", fnName, readTime.Milliseconds())
		},
	}
}

func CreateDTUModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	ignoreVendor bool, logger *log.Logger, instrumentation *ModbusInstrument) (DTUModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.WithField("target", "dtu").WithField("unit", unitId))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	// set dtu unit id
	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	// create reader instance
	reader := DTUIntModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
		blocks: dtuModbusBlocks{
			dtu:     0x2000,
			data:    0x1000,
			control: 0xC000,
		},
		ignoreVendor: ignoreVendor,
	}
	return &reader, nil
}
