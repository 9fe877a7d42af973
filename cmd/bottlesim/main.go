// Command bottlesim runs the ISA-95 bottling-line simulator: a Modbus/TCP
// server over a shared holding-register image, driven by a line engine
// that executes a production schedule and writes a transaction event log.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/amarach-stackworks/bottlesim/internal/config"
	"github.com/amarach-stackworks/bottlesim/internal/engine"
	"github.com/amarach-stackworks/bottlesim/internal/events"
	"github.com/amarach-stackworks/bottlesim/internal/logging"
	"github.com/amarach-stackworks/bottlesim/internal/modbus"
	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the simulator config file")
	speed := flag.Float64("speed", 0, "override simulator.speed_factor (0 = use config)")
	port := flag.Int("port", 0, "override modbus.port (0 = use config)")
	logLevel := flag.String("loglevel", "", "override logging.level (DEBUG/INFO/WARNING)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("INFO")
		logging.For("main").Fatalf("loading config: %v", err)
	}
	if *speed > 0 {
		cfg.Simulator.SpeedFactor = *speed
	}
	if *port != 0 {
		cfg.Modbus.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.Setup(cfg.Logging.Level)
	log := logging.For("main")

	emitter, err := events.New(events.Config{
		Enterprise: cfg.Enterprise.Name,
		Site:       cfg.Enterprise.Site,
		Area:       cfg.Enterprise.Area,
		Line:       cfg.Enterprise.Line,
		InstanceID: cfg.Simulator.InstanceID,
		TxnFile:    cfg.Logging.TransactionsFile,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		log.Fatalf("opening transaction log: %v", err)
	}
	defer emitter.Close()

	image := regs.NewImage()
	server := modbus.New(image, cfg.Modbus.Host, cfg.Modbus.Port, cfg.Modbus.UnitID)
	if err := server.Start(); err != nil {
		log.Fatalf("starting modbus server: %v", err)
	}
	defer server.Stop()
	log.Infof("modbus server listening on %s:%d (unit %d)", cfg.Modbus.Host, server.Port(), cfg.Modbus.UnitID)

	eng := engine.New(cfg, image, emitter)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received %s, shutting down", sig)
		cancel()
	}()

	eng.Run(ctx)
	log.Info("simulation stopped")
}
