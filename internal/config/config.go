package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	DTUModbusTcp DTUModbusTCPConfig `mapstructure:"dtu_modbus_tcp"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`

	PowerMeterConfig   PowerMeterConfig   `mapstructure:"power_meter"`
	SolarChargerConfig SolarChargerConfig `mapstructure:"solar_charger"`
	BatteryConfig      BatteryConfig      `mapstructure:"battery"`
	BatteryGuardConfig BatteryGuardConfig `mapstructure:"battery_guard"`
	PowerLimiterConfig PowerLimiterConfig `mapstructure:"power_limiter"`
	Port               uint               `mapstructure:"port"`
	HttpLog            bool               `mapstructure:"http_log"`
}

type DTUModbusTCPConfig struct {
	Host         string
	Port         uint
	UnitId       uint `mapstructure:"unit_id"`
	IgnoreVendor bool `mapstructure:"ignore_vendor"`
}

// PowerMeterConfig holds up to three MQTT topics whose numeric payloads are
// summed into the aggregate load/grid power reading.
type PowerMeterConfig struct {
	PowerTopic1 string `mapstructure:"power_topic_1"`
	PowerTopic2 string `mapstructure:"power_topic_2"`
	PowerTopic3 string `mapstructure:"power_topic_3"`
}

type SolarChargerConfig struct {
	PanelPowerTopic  string `mapstructure:"panel_power_topic"`
	ChargeStateTopic string `mapstructure:"charge_state_topic"`
}

// BatteryConfig points at the MQTT topics published by the BMS/shunt bridge.
type BatteryConfig struct {
	VoltageTopic string `mapstructure:"voltage_topic"`
	CurrentTopic string `mapstructure:"current_topic"`
	SoCTopic     string `mapstructure:"soc_topic"`
}

type BatteryGuardConfig struct {
	Enable bool `mapstructure:"enable"`
	// Fallback series resistance in ohms, used until enough resistance
	// samples have been calculated. 0 means "wait for calculation".
	ConfiguredResistance float64 `mapstructure:"configured_resistance"`
	VerboseLogging       bool    `mapstructure:"verbose_logging"`
}

type PowerLimiterConfig struct {
	Enable         bool   `mapstructure:"enable"`
	IntervalMillis uint32 `mapstructure:"interval_millis"`

	BatterySoCStartThreshold float64 `mapstructure:"battery_soc_start_threshold"`
	BatterySoCStopThreshold  float64 `mapstructure:"battery_soc_stop_threshold"`
	VoltageStartThreshold    float64 `mapstructure:"voltage_start_threshold"`
	VoltageStopThreshold     float64 `mapstructure:"voltage_stop_threshold"`
	// Volts per watt of AC output, compensates the conduction loss between
	// the battery and the inverter DC input.
	VoltageLoadCorrectionFactor float64 `mapstructure:"voltage_load_correction_factor"`

	LowerPowerLimit uint32 `mapstructure:"lower_power_limit"`
	UpperPowerLimit uint32 `mapstructure:"upper_power_limit"`

	TargetConsumption           float64 `mapstructure:"target_consumption"`
	TargetConsumptionHysteresis float64 `mapstructure:"target_consumption_hysteresis"`
	InverterBehindMeter         bool    `mapstructure:"inverter_behind_meter"`
	InverterEfficiencyPercent   float64 `mapstructure:"inverter_efficiency_percent"`

	// "empty_when_full" or "empty_at_night"
	DrainStrategy string `mapstructure:"drain_strategy"`
}

const (
	DRAIN_STRATEGY_EMPTY_WHEN_FULL = "empty_when_full"
	DRAIN_STRATEGY_EMPTY_AT_NIGHT  = "empty_at_night"
)

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

func CheckDrainStrategy(strategy string) (string, error) {
	s := strings.ToLower(strategy)
	switch s {
	case DRAIN_STRATEGY_EMPTY_WHEN_FULL, DRAIN_STRATEGY_EMPTY_AT_NIGHT:
		return s, nil
	default:
		return "", errors.New("invalid drain strategy. must be empty_when_full or empty_at_night")
	}
}
