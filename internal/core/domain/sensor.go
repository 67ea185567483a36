package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"

	"sunwarden2mqtt/pkg/hoymiles_modbus"
)

const (
	SENSOR_ID_BRIDGE_STATE               = "bridge"
	SENSOR_ID_BATTERY_VOLTAGE            = "battery_voltage"
	SENSOR_ID_BATTERY_VOLTAGE_AVG        = "battery_voltage_avg"
	SENSOR_ID_BATTERY_CURRENT            = "battery_current"
	SENSOR_ID_BATTERY_SOC                = "battery_soc"
	SENSOR_ID_BATTERY_OCV                = "battery_open_circuit_voltage"
	SENSOR_ID_BATTERY_RESISTANCE         = "battery_internal_resistance"
	SENSOR_ID_SOLAR_PANEL_POWER          = "solar_panel_power"
	SENSOR_ID_SOLAR_ABSORPTION           = "solar_absorption"
	SENSOR_ID_POWER_METER_POWER          = "power_meter_power"
	SENSOR_ID_INVERTER_AC_POWER          = "inverter_ac_power"
	SENSOR_ID_INVERTER_DC_VOLTAGE        = "inverter_dc_voltage"
	SENSOR_ID_INVERTER_TEMPERATURE       = "inverter_temperature"
	SENSOR_ID_INVERTER_PRODUCING         = "inverter_producing"
	SENSOR_ID_LIMITER_STATE              = "power_limiter_state"
	SENSOR_ID_LIMITER_POWER_LIMIT        = "power_limiter_limit"
	SENSOR_ID_LIMITER_DISCHARGE_MODE     = "power_limiter_battery_discharge"
	SENSOR_ID_LIMITER_DIRECT_FEED        = "power_limiter_direct_feed"
	SWITCH_ID_POWER_LIMITER_ENABLE       = "power_limiter_enable"
	INPUT_NUMBER_ID_TARGET_CONSUMPTION   = "target_consumption"
	STATE_CLASS_MEASUREMENT              = "measurement"
	STATE_CLASS_TOTAL_INCREASING         = "total_increasing"
	DEVICE_CLASS_BATTERY                 = "battery"
	DEVICE_CLASS_CURRENT                 = "current"
	DEVICE_CLASS_POWER                   = "power"
	DEVICE_CLASS_TEMPERATURE             = "temperature"
	DEVICE_CLASS_VOLTAGE                 = "voltage"
	DEVICE_CLASS_CONNECTIVITY            = "connectivity"
	DEVICE_CLASS_POWER_FLAG              = "power"
	ENTITY_CLASS_DIAGNOSTIC              = "diagnostic"
	SENSOR_TYPE_SENSOR                   = "sensor"
	SENSOR_TYPE_BINARY                   = "binary_sensor"
	INPUT_NUMBER_MODE_BOX                = "box"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sunwarden_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "Sunwarden",
		Model:        "Sunwarden",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Sunwarden %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(info *hoymiles_modbus.DTUInfo) Device {
	return Device{
		Id:           fmt.Sprintf("swn_inverter_%s", md5HashShort(info.Serial)),
		Version:      info.Version,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Name:         fmt.Sprintf("%s %s %s", info.Manufacturer, info.Model, md5HashShort(info.Serial)),
	}
}

func BatteryDevice(bridgeDevice Device) Device {
	return Device{
		Id:        fmt.Sprintf("swn_battery_%s", md5HashShort(bridgeDevice.Id)),
		Name:      "Battery",
		ViaDevice: bridgeDevice.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BatteryGuardSensors(batteryDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Battery voltage
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_BATTERY_VOLTAGE,
		SensorType:        "sensor",
		Name:              "Battery voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_VOLTAGE),
	})

	// Battery averaged voltage
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_BATTERY_VOLTAGE_AVG,
		SensorType:        "sensor",
		Name:              "Battery averaged voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_VOLTAGE_AVG),
	})

	// Battery current
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_BATTERY_CURRENT,
		SensorType:        "sensor",
		Name:              "Battery current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_CURRENT),
	})

	// Battery SoC
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        "sensor",
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	// Battery open circuit voltage
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_BATTERY_OCV,
		SensorType:        "sensor",
		Name:              "Battery open circuit voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		Icon:              "mdi:battery-heart-variant",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_OCV),
	})

	// Battery internal resistance
	sensors = append(sensors, GenericSensor{
		Device:            batteryDevice,
		Id:                SENSOR_ID_BATTERY_RESISTANCE,
		SensorType:        "sensor",
		Name:              "Battery internal resistance",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "mΩ",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		Icon:              "mdi:omega",
		UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_RESISTANCE),
	})

	return sensors
}

func PowerLimiterSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Limiter state
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_LIMITER_STATE,
		SensorType: "sensor",
		Name:       "Power limiter state",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_LIMITER_STATE),
	})

	// Requested power limit
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_LIMITER_POWER_LIMIT,
		SensorType:        "sensor",
		Name:              "Requested power limit",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_LIMITER_POWER_LIMIT),
	})

	// Battery discharge mode
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_LIMITER_DISCHARGE_MODE,
		SensorType: "binary_sensor",
		Name:       "Battery discharge enabled",
		Icon:       "mdi:battery-arrow-down",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_LIMITER_DISCHARGE_MODE),
	})

	// Direct solar feed percent
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_LIMITER_DIRECT_FEED,
		SensorType:        "sensor",
		Name:              "Direct solar feed",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_LIMITER_DIRECT_FEED),
	})

	return sensors
}

func InverterSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Inverter AC power
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_INVERTER_AC_POWER,
		SensorType:        "sensor",
		Name:              "Inverter AC power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_AC_POWER),
	})

	// Inverter DC voltage
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_INVERTER_DC_VOLTAGE,
		SensorType:        "sensor",
		Name:              "Inverter DC voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_DC_VOLTAGE),
	})

	// Inverter temperature
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_INVERTER_TEMPERATURE,
		SensorType:        "sensor",
		Name:              "Inverter temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: "°C",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_TEMPERATURE),
	})

	// Inverter producing
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_INVERTER_PRODUCING,
		SensorType: "binary_sensor",
		Name:       "Inverter producing",
		Icon:       "mdi:power-plug",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_INVERTER_PRODUCING),
	})

	return sensors
}

func TelemetrySensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Solar panel power
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_SOLAR_PANEL_POWER,
		SensorType:        "sensor",
		Name:              "Solar panel power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_SOLAR_PANEL_POWER),
	})

	// Solar absorption phase
	sensors = append(sensors, GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_SOLAR_ABSORPTION,
		SensorType: "binary_sensor",
		Name:       "Solar absorption phase",
		Icon:       "mdi:battery-charging-high",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_SOLAR_ABSORPTION),
	})

	// Aggregate power meter
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_POWER_METER_POWER,
		SensorType:        "sensor",
		Name:              "Power meter",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:home-lightning-bolt",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_POWER_METER_POWER),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     "binary_sensor",
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func PowerLimiterSwitches(inverterDevice Device) []GenericSwitch {

	var switches []GenericSwitch

	// Power limiter enable
	switches = append(switches, GenericSwitch{
		Device:   inverterDevice,
		Id:       SWITCH_ID_POWER_LIMITER_ENABLE,
		Name:     "Power limiter",
		UniqueId: uniqueId(inverterDevice.Id, SWITCH_ID_POWER_LIMITER_ENABLE),
		Icon:     "mdi:transmission-tower",
	})

	return switches
}

func PowerLimiterInputNumbers(inverterDevice Device, initialTargetConsumption float64) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	// Target consumption
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:       inverterDevice,
		Id:           INPUT_NUMBER_ID_TARGET_CONSUMPTION,
		Name:         "Target consumption",
		UniqueId:     uniqueId(inverterDevice.Id, INPUT_NUMBER_ID_TARGET_CONSUMPTION),
		Icon:         "mdi:home-import-outline",
		Max:          500,
		Min:          0,
		Step:         5,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: initialTargetConsumption,
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
