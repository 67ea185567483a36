package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "sunwarden2mqtt/internal/adapter/actor"
	"sunwarden2mqtt/internal/config"
	"sunwarden2mqtt/internal/core/actor"
	"sunwarden2mqtt/internal/server"
	"sunwarden2mqtt/internal/util/actorutil"
	"sunwarden2mqtt/pkg/hoymiles_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// init DTU actor provider
	dtuProv, err := dtuActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, dtuProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SUNWARDEN_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SUNWARDEN_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("sunwarden")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check and fix drain strategy
	drainStrategy, err := config.CheckDrainStrategy(cfg.PowerLimiterConfig.DrainStrategy)
	if err != nil {
		return nil, err
	}
	cfg.PowerLimiterConfig.DrainStrategy = drainStrategy

	// check bounds
	if cfg.PowerLimiterConfig.IntervalMillis < 2000 {
		return nil, errors.New("config param power_limiter.interval_millis should be >= 2000ms")
	}
	if cfg.PowerLimiterConfig.LowerPowerLimit == 0 {
		return nil, errors.New("config param power_limiter.lower_power_limit should be > 0")
	}
	if cfg.PowerLimiterConfig.UpperPowerLimit <= cfg.PowerLimiterConfig.LowerPowerLimit {
		return nil, errors.New("config param power_limiter.upper_power_limit must be > power_limiter.lower_power_limit")
	}
	if cfg.PowerLimiterConfig.UpperPowerLimit > hoymiles_modbus.MaxPowerLimitWatt {
		return nil, fmt.Errorf("config param power_limiter.upper_power_limit must be <= %d", hoymiles_modbus.MaxPowerLimitWatt)
	}
	if cfg.PowerLimiterConfig.TargetConsumptionHysteresis < 0 {
		return nil, errors.New("config param power_limiter.target_consumption_hysteresis must be >= 0")
	}
	if cfg.PowerLimiterConfig.BatterySoCStartThreshold > 0 &&
		cfg.PowerLimiterConfig.BatterySoCStartThreshold <= cfg.PowerLimiterConfig.BatterySoCStopThreshold {
		return nil, errors.New("config param power_limiter.battery_soc_start_threshold must be > battery_soc_stop_threshold")
	}
	if cfg.PowerLimiterConfig.VoltageStartThreshold > 0 &&
		cfg.PowerLimiterConfig.VoltageStartThreshold <= cfg.PowerLimiterConfig.VoltageStopThreshold {
		return nil, errors.New("config param power_limiter.voltage_start_threshold must be > voltage_stop_threshold")
	}
	if cfg.BatteryGuardConfig.ConfiguredResistance < 0 {
		return nil, errors.New("config param battery_guard.configured_resistance must be >= 0")
	}

	return &cfg, nil
}

func dtuActorProvider(cfg *config.Config, logger *zap.Logger) (actor.DTUActorProvider, error) {

	modbusLogger := logrus.New()
	if cfg.LogLevel == zap.DebugLevel {
		modbusLogger.SetLevel(logrus.TraceLevel)
	}

	dtu, err := hoymiles_modbus.CreateDTUModbusReader(cfg.DTUModbusTcp.Host,
		cfg.DTUModbusTcp.Port, uint8(cfg.DTUModbusTcp.UnitId), 1*time.Second,
		cfg.DTUModbusTcp.IgnoreVendor, modbusLogger, nil)

	if err != nil {
		return nil, err
	}

	return func() *adactor.DTUActor {
		return adactor.NewDTUActor(dtu, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "sunwarden")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("dtu_modbus_tcp.port", 502)
	viper.SetDefault("dtu_modbus_tcp.unit_id", 1)
	viper.SetDefault("battery_guard.enable", true)
	viper.SetDefault("battery_guard.configured_resistance", 0)
	viper.SetDefault("power_limiter.enable", false)
	viper.SetDefault("power_limiter.interval_millis", 10000)
	viper.SetDefault("power_limiter.lower_power_limit", 50)
	viper.SetDefault("power_limiter.upper_power_limit", 800)
	viper.SetDefault("power_limiter.target_consumption", 0)
	viper.SetDefault("power_limiter.target_consumption_hysteresis", 0)
	viper.SetDefault("power_limiter.inverter_efficiency_percent", 94)
	viper.SetDefault("power_limiter.drain_strategy", config.DRAIN_STRATEGY_EMPTY_WHEN_FULL)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
