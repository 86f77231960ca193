// Command thingset-server runs a sample ThingSet IP node: it registers
// a demo object tree, serves GET/FETCH/UPDATE/EXEC requests over TCP,
// and publishes its live/persisted subsets over UDP broadcast on a
// schedule. Startup order is config, registry, engine, transports,
// then wait for a termination signal and persist on exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thingset-go/thingset-go/internal/demo"
	"github.com/thingset-go/thingset-go/pkg/config"
	"github.com/thingset-go/thingset-go/pkg/engine"
	tslog "github.com/thingset-go/thingset-go/pkg/log"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/persistence"
	"github.com/thingset-go/thingset-go/pkg/registry"
	"github.com/thingset-go/thingset-go/pkg/server"
	"github.com/thingset-go/thingset-go/pkg/transport/ip"
)

var (
	configPath     string
	initConfigPath string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thingset-server",
		Short: "Run a sample ThingSet IP server node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initConfigPath != "" {
				return config.WriteSample(initConfigPath)
			}
			return run(cmd.Context(), cmd)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file path")
	cmd.Flags().StringVar(&initConfigPath, "init-config", "", "Write a starting config file to this path and exit")
	cmd.Flags().String("ip_listen_addr", "", "TCP request/response listen address")
	cmd.Flags().String("persist_path", "", "Path to the persisted state file")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetContext(ctx)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("thingset-server: parse log level: %w", err)
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	protoLogger := tslog.Logger(tslog.NewZerologAdapter(zl))
	if cfg.ProtocolLogFile != "" {
		fileLogger, err := tslog.NewFileLogger(cfg.ProtocolLogFile)
		if err != nil {
			return fmt.Errorf("thingset-server: open protocol log: %w", err)
		}
		defer fileLogger.Close()
		protoLogger = fileLogger
	}

	reg := registry.New()
	tree, err := demo.Build(reg)
	if err != nil {
		return err
	}

	store := persistence.NewFileStore(cfg.PersistPath)
	if raw, err := store.Load(); err == nil {
		if err := persistence.NewStore(reg).Restore(raw); err != nil {
			zl.Warn().Err(err).Msg("discarding unreadable persisted state")
		} else {
			zl.Info().Str("fingerprint", persistence.Fingerprint(raw)).Msg("restored persisted state")
		}
	} else if err != persistence.ErrNoPersistedState {
		zl.Warn().Err(err).Msg("load persisted state")
	}

	eng := engine.New(reg, cfg.Roles)
	svr := server.New(eng, reg)

	ipSrv := ip.NewServer(ip.RequestHandler(svr.Handler()), protoLogger)
	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- ipSrv.Listen(ctx, cfg.IPListenAddr) }()
	zl.Info().Str("addr", cfg.IPListenAddr).Msg("serving ThingSet requests")

	publisher, err := ip.NewPublisher(cfg.IPInterface, cfg.IPBroadcastAddr, cfg.IPReportChunkSize)
	if err != nil {
		return fmt.Errorf("thingset-server: start publisher: %w", err)
	}
	defer publisher.Close()

	minInterval, err := time.ParseDuration(cfg.MinReportInterval)
	if err != nil {
		return fmt.Errorf("thingset-server: parse min_report_interval: %w", err)
	}
	maxInterval, err := time.ParseDuration(cfg.MaxReportInterval)
	if err != nil {
		return fmt.Errorf("thingset-server: parse max_report_interval: %w", err)
	}
	pub := server.NewSubsetPublisher(reg, publisher, node.SubsetLive|node.SubsetPersisted, server.Config{
		MinInterval: minInterval,
		MaxInterval: maxInterval,
	})
	go func() { srvErrCh <- pub.Run(ctx) }()

	start := time.Now()
	simTicker := time.NewTicker(time.Second)
	defer simTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-srvErrCh:
			if err != nil {
				zl.Error().Err(err).Msg("server loop exited")
			}
			break loop
		case <-simTicker.C:
			tree.Simulate(start)
		}
	}

	zl.Info().Msg("shutting down, persisting state")
	raw, err := persistence.NewStore(reg).Snapshot(node.SubsetPersisted)
	if err != nil {
		return fmt.Errorf("thingset-server: snapshot state: %w", err)
	}
	if err := store.Save(raw); err != nil {
		return fmt.Errorf("thingset-server: save state: %w", err)
	}
	return nil
}
