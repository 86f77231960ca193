// Command thingset-can-node runs a sample ThingSet CAN node: it claims
// a bus address, serves requests over the bound ISO-TP endpoint, and
// publishes its live subset as multi-frame CAN reports. ISO-TP framing
// itself is an assumed external collaborator with no SocketCAN ISO-TP
// socket binding in this module, so this command pairs
// a LoopbackIsoTP endpoint with the node's half of the request/response
// channel; swapping in a real ISO-TP socket means replacing the
// can.NewLoopbackIsoTPPair call once such a binding exists.
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
	"github.com/thingset-go/thingset-go/pkg/registry"
	"github.com/thingset-go/thingset-go/pkg/server"
	"github.com/thingset-go/thingset-go/pkg/transport/can"
)

var (
	configPath     string
	desiredAddress uint8
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thingset-can-node",
		Short: "Run a sample ThingSet CAN node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file path")
	cmd.Flags().Uint8Var(&desiredAddress, "address", 0x20, "Desired CAN bus address")
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

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	logger := tslog.NewZerologAdapter(zl)

	var frameBus can.FrameBus
	if bus, err := can.NewSocketCANBus(cfg.CANInterface); err != nil {
		zl.Warn().Err(err).Str("iface", cfg.CANInterface).Msg("SocketCAN unavailable, running on an in-process loopback bus")
		frameBus = can.NewLoopbackBus(can.NewLoopbackNetwork())
	} else {
		frameBus = bus
	}

	eui := euiFromAddress(desiredAddress)
	transport := can.NewTransport(frameBus, eui, logger)

	reg := registry.New()
	tree, err := demo.Build(reg)
	if err != nil {
		return err
	}
	eng := engine.New(reg, cfg.Roles)
	svr := server.New(eng, reg)

	ep, peer := can.NewLoopbackIsoTPPair()
	defer peer.Close()

	if err := transport.Bind(ctx, desiredAddress, ep, svr.Handler()); err != nil {
		return fmt.Errorf("thingset-can-node: bind: %w", err)
	}
	zl.Info().Uint8("address", transport.Address()).Msg("claimed CAN address")

	errc := make(chan error, 1)
	go func() { errc <- transport.Serve(ctx) }()

	sink := server.NewCANSink(transport)
	minInterval, err := time.ParseDuration(cfg.MinReportInterval)
	if err != nil {
		return err
	}
	maxInterval, err := time.ParseDuration(cfg.MaxReportInterval)
	if err != nil {
		return err
	}
	pub := server.NewSubsetPublisher(reg, sink, node.SubsetLive, server.Config{MinInterval: minInterval, MaxInterval: maxInterval})
	go func() { errc <- pub.Run(ctx) }()

	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return transport.Close()
		case err := <-errc:
			if err != nil {
				zl.Error().Err(err).Msg("node loop exited")
			}
			return transport.Close()
		case <-ticker.C:
			tree.Simulate(start)
		}
	}
}

// euiFromAddress derives a stand-in EUI-64 for the demo node from the
// desired address, for a deterministic identity without a hardware MAC.
func euiFromAddress(addr uint8) [8]byte {
	var eui [8]byte
	eui[0] = 0x02
	eui[7] = addr
	return eui
}
