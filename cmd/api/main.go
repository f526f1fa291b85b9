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
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/sensorist2mqtt/internal/adapter/actor"
	"github.com/berfenger/sensorist2mqtt/internal/adapter/store"
	"github.com/berfenger/sensorist2mqtt/internal/config"
	"github.com/berfenger/sensorist2mqtt/internal/core/actor"
	"github.com/berfenger/sensorist2mqtt/internal/core/domain"
	"github.com/berfenger/sensorist2mqtt/internal/core/port"
	"github.com/berfenger/sensorist2mqtt/internal/metrics"
	"github.com/berfenger/sensorist2mqtt/internal/schedule"
	"github.com/berfenger/sensorist2mqtt/internal/server"
	"github.com/berfenger/sensorist2mqtt/internal/util/actorutil"
	"github.com/berfenger/sensorist2mqtt/pkg/sensorist"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/pflag"
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

	configFile := pflag.String("config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	pflag.Parse()

	// load and print config
	cfg, err := initConfig(*configFile)
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("starting sensorist2mqtt", zap.String("version", versioninfo.Short()))

	// state file for sensor restore
	readings, err := readingStore(cfg)
	if err != nil {
		logger.Fatal("could not open state file", zap.Error(err))
	}

	// Sensorist API client
	client, err := sensorist.NewClient(
		sensorist.WithBaseURL(cfg.Sensorist.BaseURL),
		sensorist.WithCredentials(cfg.Sensorist.Username, cfg.Sensorist.Password),
		sensorist.WithRequestTimeout(cfg.Sensorist.RequestTimeout()),
		sensorist.WithMinRequestInterval(cfg.Sensorist.MinRequestInterval()),
		sensorist.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("could not create Sensorist client", zap.Error(err))
	}

	m := metrics.New()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, sensoristActorProvider(cfg, client, m, logger),
			mqttActorProvider(cfg, logger), readings, m, logger)
	}, pactor.WithSupervisor(actor.MasterSupervisor()))
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Fatal("could not start master actor", zap.Error(err))
	}

	// periodic rediscovery
	rediscovery := schedule.NewRediscovery(cfg.Sensorist.RediscoveryInterval(), func() {
		ctx.Send(pid, domain.DiscoveryTick{})
	}, logger)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	if err := rediscovery.Start(schedCtx); err != nil {
		logger.Error("could not schedule rediscovery", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid, m)
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

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	rediscovery.Stop(stopCtx)
	stopCancel()
	schedCancel()

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig(configFile string) (*config.Config, error) {

	// alias PORT => SENSORIST_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SENSORIST_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("sensorist")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			slog.Info("Using config", "file", configFile)
			viper.SetConfigFile(configFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		} else {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
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

	// anonymous access is a valid setup
	if cfg.Sensorist.Username == "" || cfg.Sensorist.Password == "" {
		slog.Warn("sensorist.username or sensorist.password not set, using anonymous requests")
	}

	// check bounds
	if cfg.Sensorist.ScanIntervalMinutes < 1 {
		return nil, errors.New("config param sensorist.scan_interval_minutes should be >= 1")
	}
	if cfg.Sensorist.RequestTimeoutSeconds < 1 {
		return nil, errors.New("config param sensorist.request_timeout_seconds should be >= 1")
	}
	if cfg.MQTT.Host == "" {
		return nil, errors.New("config param mqtt.host is required")
	}

	return &cfg, nil
}

func readingStore(cfg *config.Config) (port.ReadingStore, error) {
	if cfg.StateFile == "" {
		return store.NewMemoryStore(), nil
	}
	return store.OpenYAMLStore(cfg.StateFile)
}

func sensoristActorProvider(cfg *config.Config, api port.SensoristAPI, m *metrics.Metrics, logger *zap.Logger) actor.SensoristActorProvider {
	return func() *adactor.SensoristActor {
		return adactor.NewSensoristActor(api, cfg.Sensorist.RequestTimeout(), m, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("state_file", "sensorist_state.yaml")
	viper.SetDefault("sensorist.username", "")
	viper.SetDefault("sensorist.password", "")
	viper.SetDefault("sensorist.base_url", sensorist.DefaultBaseURL)
	viper.SetDefault("sensorist.scan_interval_minutes", 15)
	viper.SetDefault("sensorist.rediscovery_interval_minutes", 60)
	viper.SetDefault("sensorist.register_devices", false)
	viper.SetDefault("sensorist.request_timeout_seconds", 30)
	viper.SetDefault("sensorist.min_request_interval_millis", 0)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "sensorist")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

func safePrintConfig(cfg config.Config) {
	cfg.Sensorist.Username = "*redacted*"
	cfg.Sensorist.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
