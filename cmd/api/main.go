package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/powerpilot/internal/adapter/actor"
	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/adapter/hal"
	"github.com/berfenger/powerpilot/internal/adapter/job"
	"github.com/berfenger/powerpilot/internal/adapter/price"
	"github.com/berfenger/powerpilot/internal/adapter/sensor"
	"github.com/berfenger/powerpilot/internal/config"
	"github.com/berfenger/powerpilot/internal/core/actor"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
	"github.com/berfenger/powerpilot/internal/core/service"
	"github.com/berfenger/powerpilot/internal/metrics"
	"github.com/berfenger/powerpilot/internal/server"
	"github.com/berfenger/powerpilot/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

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
	defer logger.Sync()

	logger.Info("starting powerpilot", zap.String("version", versioninfo.Short()), zap.Bool("dry_run", cfg.DryRun))

	m := metrics.NewMetrics()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	ctrl, inverter, closers, err := buildController(cfg, as, m, logger)
	if err != nil {
		logger.Error("controller setup failed", zap.Error(err))
		return
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}()

	var prices port.PriceSource
	if cfg.Price.Enable {
		prices = price.NewAwattarClient(cfg.Price.URL, time.Duration(cfg.Price.TimeoutMillis)*time.Millisecond, logger.Named("price"))
	}

	controllerCfg := actor.ControllerActorConfig{
		WatchdogInterval: time.Duration(cfg.Watchdog.IntervalMillis) * time.Millisecond,
		StatusInterval:   time.Duration(cfg.StatusIntervalMillis) * time.Millisecond,
		PriceTimeout:     time.Duration(cfg.Price.TimeoutMillis) * time.Millisecond,
		StatusChannels:   cfg.Sensor.Channels(),
	}
	deps := actor.ControllerDeps{
		Controller: ctrl,
		Prices:     prices,
		Metrics:    m,
		Inverter:   inverter,
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, func(es *eventstream.EventStream) *actor.ControllerActor {
			return actor.NewControllerActor(controllerCfg, deps, es, logger)
		}, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("master actor spawn failed", zap.Error(err))
		return
	}

	// scheduled jobs
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	jobs := job.NewScheduler(job.Specs(*cfg), func(cmd domain.PowerCommandRequest) {
		ctx.Send(pid, cmd)
	}, logger.Named("jobs"))
	if err := jobs.Start(jobsCtx); err != nil {
		logger.Error("job scheduler failed", zap.Error(err))
		ctx.Stop(pid)
		as.Shutdown()
		return
	}
	if cfg.Price.Enable {
		ctx.Send(pid, domain.RefreshPricesRequest{})
	}

	server := server.NewServer(*cfg, ctx, pid, m.Handler())
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

	jobs.Stop()
	ctx.Stop(pid)
	as.Shutdown()
}

// buildController opens the switch lines, the battery sensor and the two
// drivers. The returned closers release serial links and buses.
func buildController(cfg *config.Config, as *pactor.ActorSystem, m *metrics.Metrics, logger *zap.Logger) (*service.Controller, actor.InverterTelemetry, []io.Closer, error) {

	var pins *hal.Registry
	if cfg.DryRun {
		pins = hal.NewMemoryRegistry(logger.Named("hal"))
	} else {
		var err error
		pins, err = hal.NewPeriphRegistry(logger.Named("hal"))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// in line is active low, start with both lines off
	inPin, err := pins.Output(cfg.Power.InPin, true)
	if err != nil {
		return nil, nil, nil, err
	}
	outPin, err := pins.Output(cfg.Power.OutPin, false)
	if err != nil {
		return nil, nil, nil, err
	}

	var closers []io.Closer
	batterySensor, err := sensor.New(cfg.Sensor, m.ModbusInstrument(), logger.Named("sensor"))
	if err != nil {
		return nil, nil, nil, err
	}
	if c, ok := batterySensor.(io.Closer); ok {
		closers = append(closers, c)
	}

	ctrl := service.NewController(cfg.ControllerConfig(), inPin, outPin, batterySensor, time.Now, logger.Named("controller"))

	driverDeps := driver.Deps{
		Pins:   pins,
		Remote: adactor.NewMQTTRemoteCaller(as),
		View:   ctrl,
		Logger: logger,
	}
	inDriver, err := driver.New(cfg.Power.In.Driver, domain.PowerIn, driverDeps)
	if err != nil {
		return nil, nil, closers, fmt.Errorf("power in driver: %w", err)
	}
	outDriver, err := driver.New(cfg.Power.Out.Driver, domain.PowerOut, driverDeps)
	if err != nil {
		return nil, nil, closers, fmt.Errorf("power out driver: %w", err)
	}
	if err := ctrl.AttachDrivers(inDriver, outDriver); err != nil {
		return nil, nil, closers, err
	}
	if cfg.Power.In.Driver.Driver == driver.DRIVER_SWITCH {
		logger.Warn("power in driver is a plain switch, charge power cannot be regulated")
	}

	var inverter actor.InverterTelemetry
	for _, d := range []port.PowerDriver{inDriver, outDriver} {
		if c, ok := d.(io.Closer); ok {
			closers = append(closers, c)
		}
		if t, ok := d.(actor.InverterTelemetry); ok && inverter == nil {
			inverter = t
		}
	}

	return ctrl, inverter, closers, nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => POWERPILOT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("POWERPILOT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("powerpilot")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("dry_run", false)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("status_interval_millis", 10000)

	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "powerpilot")
	viper.SetDefault("mqtt.meter_topic", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")

	viper.SetDefault("power.in_pin", "GPIO5")
	viper.SetDefault("power.out_pin", "GPIO6")
	viper.SetDefault("power.out_enabled", true)
	viper.SetDefault("power.in.min", 0)
	viper.SetDefault("power.in.max", 2000)
	viper.SetDefault("power.in.target", -1)
	viper.SetDefault("power.in.driver", driver.DRIVER_DUMMY)
	viper.SetDefault("power.out.min", 0)
	viper.SetDefault("power.out.max", 600)
	viper.SetDefault("power.out.target", -1)
	viper.SetDefault("power.out.driver", driver.DRIVER_DUMMY)
	viper.SetDefault("power.out.soyosource.feed_interval", "1s")
	viper.SetDefault("power.out.soyosource.status_interval", "10s")

	viper.SetDefault("battery.cells", 4)
	viper.SetDefault("battery.nominal_voltage", 12.8)
	viper.SetDefault("battery.settle_active_millis", 60000)
	viper.SetDefault("battery.settle_idle_millis", 600000)

	viper.SetDefault("optimizer.enable", true)
	viper.SetDefault("optimizer.target_min", -50)
	viper.SetDefault("optimizer.target_max", 50)
	viper.SetDefault("optimizer.pending_size", 2)
	viper.SetDefault("optimizer.in_min", 100)
	viper.SetDefault("optimizer.out_on_threshold", 200)
	viper.SetDefault("optimizer.out_off_threshold", 20)

	viper.SetDefault("watchdog.interval_millis", 5000)
	viper.SetDefault("watchdog.voltage_min", 12.0)
	viper.SetDefault("watchdog.voltage_max", 14.2)
	viper.SetDefault("watchdog.max_lag_millis", 60000)

	viper.SetDefault("price.enable", false)
	viper.SetDefault("price.url", price.DefaultAwattarURL)
	viper.SetDefault("price.window_hours", 24)
	viper.SetDefault("price.timeout_millis", 5000)
	viper.SetDefault("price.refresh_cron", "0 5 * * * *")

	viper.SetDefault("jobs.capacity_reset_cron", "0 0 0 * * *")

	viper.SetDefault("sensor.instrument", sensor.INSTRUMENT_STATIC)
	viper.SetDefault("sensor.static.voltage", 13.2)
	viper.SetDefault("sensor.modbus.speed", 9600)
	viper.SetDefault("sensor.modbus.unit_id", 1)
	viper.SetDefault("sensor.modbus.timeout", "1s")
	viper.SetDefault("sensor.ina219.bus", "")
	viper.SetDefault("sensor.ina219.sense_resistor", 0.1)
	viper.SetDefault("sensor.ina219.max_current", 3.2)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
