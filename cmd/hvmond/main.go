package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/renedaq/hvmond/internal/config"
	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/engine"
	"codeberg.org/renedaq/hvmond/internal/gateway"
	"codeberg.org/renedaq/hvmond/internal/health"
	"codeberg.org/renedaq/hvmond/internal/logger"
	"codeberg.org/renedaq/hvmond/internal/pid"
	"codeberg.org/renedaq/hvmond/internal/poller"
	"codeberg.org/renedaq/hvmond/internal/store"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("hvmond exited with error")
		os.Exit(1)
	}
}

func run() error {
	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	topo, err := crate.NewTopology(cfg.SlotDefs())
	if err != nil {
		return err
	}

	params, err := crate.NewParameterSet(cfg.Parameters)
	if err != nil {
		return err
	}

	logger.Info().
		Ints("slots", topo.Slots()).
		Int("channels", topo.TotalChannels()).
		Strs("parameters", params.Names()).
		Msg("Crate topology loaded")

	repo, err := store.Open(store.Config{DBPath: cfg.Database}, logger.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close telemetry store")
		}
	}()

	gw, err := gateway.Dial(gateway.Config{
		Address: cfg.Gateway.Address,
		Timeout: cfg.GatewayTimeout(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close crate gateway")
		}
	}()

	eng, err := engine.New(engine.Config{
		PollInterval:    cfg.PollInterval(),
		CommitInterval:  cfg.CommitInterval(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
	}, poller.New(gw, topo, params), repo, logger.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	go watchEvents(eng)
	if cfg.Verbose || cfg.Debug {
		go watchSnapshots(eng)
	}

	return eng.Run(ctx)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// watchEvents surfaces runtime errors for status display or alerting.
func watchEvents(eng *engine.Engine) {
	events, cancel := eng.Events(0)
	defer cancel()

	for ev := range events {
		logger.Warn().
			Str("category", string(ev.Category)).
			Time("at", ev.Time).
			Msg(ev.Message)
	}
}

// watchSnapshots is the dashboard stand-in: a per-snapshot health
// summary derived on the consumer side, never persisted.
func watchSnapshots(eng *engine.Engine) {
	snapshots, cancel := eng.Snapshots(0)
	defer cancel()

	for snap := range snapshots {
		var poweredOff, nominal, elevated, high, critical int

		for _, slotSnap := range snap.Slots {
			for _, chSnap := range slotSnap {
				state := health.Evaluate(chSnap)
				switch {
				case state.PoweredOff:
					poweredOff++
				case state.Band == health.Nominal:
					nominal++
				case state.Band == health.Elevated:
					elevated++
				case state.Band == health.High:
					high++
				default:
					critical++
				}
			}
		}

		logger.Info().
			Time("taken", snap.Taken).
			Int("powered_off", poweredOff).
			Int("nominal", nominal).
			Int("elevated", elevated).
			Int("high", high).
			Int("critical", critical).
			Msg("Crate health")
	}
}
