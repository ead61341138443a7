// Command ripd runs one instance of the distance-vector routing daemon,
// configured by a single config-file argument.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelshaw/ripd/internal/config"
	"github.com/kelshaw/ripd/internal/daemon"
	"github.com/kelshaw/ripd/internal/multiplex"
	"github.com/kelshaw/ripd/internal/receiver"
	"github.com/kelshaw/ripd/internal/sender"
	"github.com/kelshaw/ripd/internal/table"
)

func main() {
	os.Exit(run())
}

// run returns 0 on any fatal error, matching the legacy exit-status
// behaviour recorded as an open question in the design notes: the process
// logs the failure at error level but never signals failure via its exit
// code.
func run() int {
	logLevel := new(slog.LevelVar)
	flag.Func("log-level", "log level: debug, info, warn, error (default info)", func(s string) error {
		return logLevel.UnmarshalText([]byte(s))
	})
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	if flag.NArg() != 1 {
		logger.Error("usage error", "component", "cmd", "op", "parse_args", "err", fmt.Sprintf("usage: %s <config-file>", os.Args[0]))
		return 0
	}

	if err := runDaemon(flag.Arg(0), logger); err != nil {
		logger.Error("fatal error", "component", "cmd", "op", "run", "err", err)
		return 0
	}
	return 0
}

func runDaemon(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller, err := multiplex.New()
	if err != nil {
		return err
	}
	defer poller.Close()

	updatePeriod := secondsToDuration(cfg.UpdatePeriodSeconds)

	trigger := &daemon.TriggerFlag{}
	rt := table.New(cfg.RouterID, cfg.Neighbours, updatePeriod, trigger)

	recv, err := receiver.New(rt, poller, cfg.InputPorts, logger)
	if err != nil {
		return err
	}
	defer recv.Close()

	snd, err := sender.New(rt, cfg.Neighbours, cfg.OutputPort, logger)
	if err != nil {
		return err
	}
	defer snd.Close()

	d := daemon.New(rt, recv, snd, trigger, updatePeriod, logger)

	logger.Info("daemon starting",
		"component", "daemon", "op", "start",
		"router_id", cfg.RouterID,
		"input_ports", cfg.InputPorts,
		"output_port", cfg.OutputPort,
		"update_period_seconds", cfg.UpdatePeriodSeconds,
	)

	d.Run(ctx)
	return nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
