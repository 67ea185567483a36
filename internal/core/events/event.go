package events

import (
	. "sunwarden2mqtt/internal/core/domain"
)

func BatterySampleToUpdateEvents(sample BatterySample) []any {
	var events []any

	// Battery voltage
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_VOLTAGE,
		},
		Value:    sample.Voltage,
		Decimals: 3,
	})
	// Battery current
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_CURRENT,
		},
		Value:    sample.Current,
		Decimals: 2,
	})

	return events
}

func BatterySoCToUpdateEvents(reading BatterySoCReading) []any {
	var events []any

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_SOC,
		},
		Value:    reading.SoC,
		Decimals: 1,
	})

	return events
}

func BatteryGuardReportToUpdateEvents(report BatteryGuardReport) []any {
	var events []any

	// Averaged battery voltage
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_VOLTAGE_AVG,
		},
		Value:    report.AveragedVoltage,
		Decimals: 3,
	})
	// Open circuit voltage
	if report.OpenCircuitVoltageOk {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_OCV,
			},
			Value:    report.OpenCircuitVoltage,
			Decimals: 3,
		})
	}
	// Internal resistance, published in milliohms
	if report.ResistanceInUseOk {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_RESISTANCE,
			},
			Value:    report.ResistanceInUse * 1000,
			Decimals: 2,
		})
	}

	return events
}

func SolarChargerToUpdateEvents(reading SolarChargerReading) []any {
	var events []any

	// Panel power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_PANEL_POWER,
		},
		Value:    reading.PanelPowerWatt,
		Decimals: 1,
	})
	// Absorption phase
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_ABSORPTION,
		},
		Value: reading.Absorption,
	})

	return events
}

func PowerMeterToUpdateEvents(reading PowerMeterReading) []any {
	var events []any

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_POWER_METER_POWER,
		},
		Value:    reading.PowerWatt,
		Decimals: 2,
	})

	return events
}

func InverterFeedToUpdateEvents(feed InverterFeed) []any {
	var events []any

	// Inverter AC power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_AC_POWER,
		},
		Value:    feed.ACPowerWatt,
		Decimals: 1,
	})
	// Inverter DC voltage
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_DC_VOLTAGE,
		},
		Value:    feed.DCVoltage,
		Decimals: 2,
	})
	// Inverter temperature
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_TEMPERATURE,
		},
		Value:    feed.TemperatureCelsius,
		Decimals: 1,
	})
	// Producing flag
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_PRODUCING,
		},
		Value: feed.Producing,
	})

	return events
}

func PowerLimiterTickToUpdateEvents(result PowerLimiterTickResult) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LIMITER_STATE,
		},
		Value: result.State.String(),
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LIMITER_DISCHARGE_MODE,
		},
		Value: result.DischargeEnabled,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LIMITER_DIRECT_FEED,
		},
		Value:    result.DirectFeedPercent,
		Decimals: 0,
	})
	if result.SendLimit {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_LIMITER_POWER_LIMIT,
			},
			Value:    float64(result.LimitWatt),
			Decimals: 0,
		})
	}

	return events
}

func PowerLimiterEnableSwitchUpdateEvents(enabled bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_POWER_LIMITER_ENABLE,
		},
		Value: enabled,
	}
}

func TargetConsumptionUpdateEvents(watts float64) []any {
	var events []any
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_TARGET_CONSUMPTION,
		},
		Value: watts,
	})
	return events
}
