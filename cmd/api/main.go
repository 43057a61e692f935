package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/ws3000mqtt/internal/adapter/actor"
	"github.com/berfenger/ws3000mqtt/internal/config"
	"github.com/berfenger/ws3000mqtt/internal/core/actor"
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/server"
	"github.com/berfenger/ws3000mqtt/internal/util/actorutil"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// gracefulShutdown waits for a signal or a fatal station error. It reports
// whether the exit is a failure.
func gracefulShutdown(apiServer *http.Server, fatal <-chan domain.StationUnreachable, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := false
	select {
	case <-ctx.Done():
		log.Println("shutting down gracefully, press Ctrl+C again to force")
	case ev := <-fatal:
		log.Printf("shutting down: %s", ev)
		failed = true
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- failed
}

func main() {

	versioninfo.AddFlag(nil)
	flag.Parse()

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(2)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	logger.Info("starting ws3000mqtt", zap.String("version", versioninfo.Short()),
		zap.String("driver", ws3000.DRIVER_VERSION))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	fatal := make(chan domain.StationUnreachable, 1)
	onFatal := func(ev domain.StationUnreachable) {
		select {
		case fatal <- ev:
		default:
		}
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, stationActorProvider(cfg, logger), mqttActorProvider(cfg, logger), onFatal, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("cannot spawn master actor", zap.Error(err))
		os.Exit(1)
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, fatal, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	failed := <-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()

	if failed {
		logger.Sync()
		os.Exit(1)
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => WS3000_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("WS3000_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("ws3000")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

	// station id is part of every unique id, it must be topic safe too
	stationId, err := config.CheckMQTTTopic(cfg.MQTT.StationId)
	if err != nil {
		return nil, errors.New("invalid station id. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.StationId = stationId

	// check bounds
	if cfg.Station.PollIntervalSeconds < 1 {
		return nil, errors.New("config param station.poll_interval_seconds should be >= 1")
	}
	if cfg.Station.DebounceThreshold < 1 {
		return nil, errors.New("config param station.debounce_threshold should be >= 1")
	}
	if cfg.Station.MaxTransportFailures < 0 {
		return nil, errors.New("config param station.max_transport_failures should be >= 0")
	}
	if cfg.USB.TimeoutMillis < 100 {
		return nil, errors.New("config param usb.timeout_millis should be >= 100")
	}
	if cfg.Station.SyncTimeEnable && cfg.Station.SyncTimeIntervalHours < 1 {
		return nil, errors.New("config param station.sync_time_interval_hours should be >= 1")
	}

	return &cfg, nil
}

func stationActorProvider(cfg *config.Config, logger *zap.Logger) actor.StationActorProvider {

	var reader ws3000.StationReader
	if cfg.USB.Simulate {
		logger.Warn("using a simulated station")
		reader, _ = ws3000.CreateSimulatedStationReader(ws3000.DefaultSimulatedStation(), logger)
	} else {
		reader = ws3000.CreateUSBStationReader(ws3000.USBConfig{
			VendorID:  cfg.USB.VendorId,
			ProductID: cfg.USB.ProductId,
			Interface: cfg.USB.Interface,
		}, cfg.USB.Model, cfg.USB.Timeout(), logger, nil)
	}

	return func() pactor.Actor {
		return adactor.NewStationActor(reader, cfg.USB.Timeout(), logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() pactor.Actor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("usb.vendor_id", ws3000.DEFAULT_VENDOR_ID)
	viper.SetDefault("usb.product_id", ws3000.DEFAULT_PRODUCT_ID)
	viper.SetDefault("usb.interface", 0)
	viper.SetDefault("usb.timeout_millis", 1000)
	viper.SetDefault("usb.wait_before_retry_millis", 5000)
	viper.SetDefault("usb.model", ws3000.DEFAULT_MODEL)
	viper.SetDefault("usb.simulate", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "ws3000")
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.device_label", "WS-3000")
	viper.SetDefault("mqtt.station_id", "ws3000")
	viper.SetDefault("mqtt.expire_after_seconds", 3600)
	viper.SetDefault("station.poll_interval_seconds", 60)
	viper.SetDefault("station.debounce_threshold", 3)
	viper.SetDefault("station.bootstrap_timeout_seconds", 300)
	viper.SetDefault("station.config_refresh_seconds", 3600)
	viper.SetDefault("station.max_transport_failures", 5)
	viper.SetDefault("station.sync_time_enable", false)
	viper.SetDefault("station.sync_time_interval_hours", 12)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
