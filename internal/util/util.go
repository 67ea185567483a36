package util

import (
	"sunwarden2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		DTUModbusTcp: config.DTUModbusTCPConfig{
			Host:   "-.-.-.-",
			Port:   502,
			UnitId: 1,
		},
		MQTT: config.MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		BatteryConfig: config.BatteryConfig{
			VoltageTopic: "bms/voltage",
			CurrentTopic: "bms/current",
			SoCTopic:     "bms/soc",
		},
		PowerMeterConfig: config.PowerMeterConfig{
			PowerTopic1: "meter/power",
		},
		SolarChargerConfig: config.SolarChargerConfig{
			PanelPowerTopic:  "mppt/panel_power",
			ChargeStateTopic: "mppt/state",
		},
		BatteryGuardConfig: config.BatteryGuardConfig{
			Enable:               true,
			ConfiguredResistance: 0.02,
		},
		PowerLimiterConfig: config.PowerLimiterConfig{
			Enable:                      true,
			IntervalMillis:              10000,
			BatterySoCStartThreshold:    90,
			BatterySoCStopThreshold:     20,
			VoltageStartThreshold:       26,
			VoltageStopThreshold:        23,
			VoltageLoadCorrectionFactor: 0.001,
			LowerPowerLimit:             50,
			UpperPowerLimit:             800,
			TargetConsumption:           20,
			TargetConsumptionHysteresis: 10,
			InverterEfficiencyPercent:   94,
			DrainStrategy:               config.DRAIN_STRATEGY_EMPTY_WHEN_FULL,
		},
		Port: 8080,
	}
}
