package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/eosconnect/internal/adapter/actor"
	"github.com/berfenger/eosconnect/internal/adapter/eos"
	"github.com/berfenger/eosconnect/internal/adapter/evcc"
	"github.com/berfenger/eosconnect/internal/adapter/inverter"
	"github.com/berfenger/eosconnect/internal/adapter/source"
	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/actor"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/core/service"
	"github.com/berfenger/eosconnect/internal/server"
	"github.com/berfenger/eosconnect/internal/util/actorutil"
	"github.com/berfenger/eosconnect/pkg/sunspec_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const MODBUS_TIMEOUT = 2 * time.Second

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
	if err := run(); err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

// run returns only once the server shut down. Configuration and wiring
// errors come back before anything is started.
func run() error {

	// load config, errors here are fatal
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	config.SafePrintConfig(*cfg, logger)

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Actuator.Close()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, deps, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return fmt.Errorf("cannot spawn master: %w", err)
	}
	defer ctx.Stop(pid)

	// periodic optimization runs, aligned to quarter hours
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	sched, err := startOptimizationScheduler(schedCtx, cfg, deps, func() {
		ctx.Send(pid, domain.TriggerOptimizationRequest{})
	})
	if err != nil {
		return fmt.Errorf("cannot start optimization scheduler: %w", err)
	}
	defer sched.Stop()

	server := server.NewServer(*cfg, ctx, pid, deps.Publisher, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
	return nil
}

// buildDeps wires sources, clients and the inverter driver. A single
// Modbus session is shared by the Fronius driver and the SoC source.
func buildDeps(cfg *config.Config, logger *zap.Logger) (actor.MasterDeps, error) {
	var deps actor.MasterDeps

	var session *sunspec_modbus.Session
	var sunspecBattery *source.SunSpecBattery
	if cfg.Inverter.Type == config.INVERTER_TYPE_FRONIUS_GEN24 || cfg.Battery.Source == config.SOURCE_FRONIUS_GEN24 {
		reader, err := sunspec_modbus.CreateInverterIntSFModbusReader(cfg.Inverter.Address,
			cfg.Inverter.ModbusPort, uint8(cfg.Inverter.UnitId), MODBUS_TIMEOUT,
			cfg.Inverter.IgnoreFronius, logger, nil)
		if err != nil {
			return deps, err
		}
		session = sunspec_modbus.NewSession(reader)
		sunspecBattery = source.NewSunSpecBattery(session)
	}

	var evccClient port.EVCCClient
	if cfg.EVCC.URL != "" {
		evccClient = evcc.NewClient(cfg.EVCC.URL, logger)
	}

	sources, err := source.FromConfig(*cfg, evccClient, sunspecBattery)
	if err != nil {
		return deps, err
	}

	driver, err := inverter.NewDriver(*cfg, session, logger)
	if err != nil {
		return deps, err
	}

	es := &eventstream.EventStream{}
	publisher := service.NewPublisher(cfg.TimeFrameSeconds, cfg.Inverter.MaxGridChargeRate, es, cfg.Now)

	deps = actor.MasterDeps{
		Publisher:   publisher,
		Overrides:   service.NewOverrideManager(cfg.Inverter.MaxGridChargeRate, cfg.Now, logger),
		Assembler:   service.NewAssembler(*cfg, sources.Load, sources.Price, sources.PV, sources.Battery, logger),
		Optimizer:   eos.NewClient(cfg.EOS.Server, cfg.EOS.Port, cfg.EOSTimeout(), logger),
		Runtimes:    service.NewRuntimeTracker(),
		Actuator:    service.NewActuator(driver, cfg.Battery.MaxChargePowerW, logger),
		EVCC:        evccClient,
		EventStream: es,
		MQTTActorProvider: func(es *eventstream.EventStream) *adactor.MQTTActor {
			if !cfg.MQTT.Enabled {
				return adactor.NewTestMQTTActor(cfg, es, logger)
			}
			return adactor.NewMQTTActor(cfg, es, logger)
		},
	}
	return deps, nil
}

func startOptimizationScheduler(ctx context.Context, cfg *config.Config, deps actor.MasterDeps, tick func()) (quartz.Scheduler, error) {
	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	trigger := service.NewOptimizationTrigger(cfg.RefreshInterval(), deps.Runtimes, cfg.Now, deps.Publisher.NextRun)
	job := quartz.NewJobDetail(service.NewOptimizationJob(tick), quartz.NewJobKey("optimization"))
	if err := sched.ScheduleJob(job, trigger); err != nil {
		sched.Stop()
		return nil, err
	}
	return sched, nil
}
