// Command thingset-client is a sample cobra-based CLI issuing
// GET/UPDATE/EXEC requests and listening for reports against a running
// ThingSet IP node. All subcommands are defined in this file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thingset-go/thingset-go/pkg/client"
	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/transport/ip"
)

var (
	serverAddr string
	timeout    time.Duration
	valueType  string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thingset-client",
		Short: "Issue ThingSet requests against a running IP node",
	}
	cmd.PersistentFlags().StringVar(&serverAddr, "addr", "127.0.0.1:9001", "Server TCP address")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-request timeout")
	cmd.AddCommand(newGetCmd(), newUpdateCmd(), newExecCmd(), newSubscribeCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "thingset-client:", err)
		os.Exit(1)
	}
}

func dial(ctx context.Context) (*client.Client, *ip.Conn, error) {
	conn, err := ip.Dial(ctx, serverAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", serverAddr, err)
	}
	return client.New(client.NewIPTransport(conn), timeout), conn, nil
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "GET a property or group value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, conn, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			dec, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, err := decodeScalar(dec, valueType)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
	cmd.Flags().StringVar(&valueType, "as", "auto", "Value type to decode: auto, int, uint, float, string, bool")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var childKey string
	cmd := &cobra.Command{
		Use:   "update <group-path> <value>",
		Short: "UPDATE one child of a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, conn, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			id, idErr := strconv.ParseUint(childKey, 10, 16)
			err = c.Update(cmd.Context(), args[0], func(enc codec.Encoder) error {
				if err := enc.EncodeMapStart(1); err != nil {
					return err
				}
				if idErr == nil {
					if err := enc.EncodeUint(id); err != nil {
						return err
					}
				} else if err := enc.EncodeString(childKey); err != nil {
					return err
				}
				if err := encodeScalar(enc, valueType, args[1]); err != nil {
					return err
				}
				return enc.EncodeMapEnd()
			})
			return err
		},
	}
	cmd.Flags().StringVar(&childKey, "child", "", "Child node ID (numeric) or name")
	cmd.Flags().StringVar(&valueType, "as", "float", "Value type to encode: int, uint, float, string, bool")
	return cmd
}

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <path>",
		Short: "EXEC a function with no arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, conn, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			_, err = c.Exec(cmd.Context(), args[0], nil)
			return err
		},
	}
	return cmd
}

func newSubscribeCmd() *cobra.Command {
	var broadcastAddr string
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Print incoming broadcast reports until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := ip.NewSubscriber(broadcastAddr)
			if err != nil {
				return err
			}
			defer sub.Close()

			c := client.New(nil, 0)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.Subscribe(ctx, client.NewIPReportSource(sub), func(sender string, dec codec.Decoder) {
				fmt.Printf("report from %s\n", sender)
				_ = dec.DecodeMap(func(key codec.Key) (bool, error) {
					text, _ := decodeScalar(dec, "auto")
					if key.IsString {
						fmt.Printf("  %s = %s\n", key.Str, text)
					} else {
						fmt.Printf("  %d = %s\n", key.Int, text)
					}
					return true, nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&broadcastAddr, "addr", ":9002", "UDP broadcast listen address")
	return cmd
}

func decodeScalar(dec codec.Decoder, typ string) (string, error) {
	switch typ {
	case "int":
		v, err := dec.DecodeInt()
		return strconv.FormatInt(v, 10), err
	case "uint":
		v, err := dec.DecodeUint()
		return strconv.FormatUint(v, 10), err
	case "float":
		v, err := dec.DecodeFloat64()
		return strconv.FormatFloat(v, 'g', -1, 64), err
	case "bool":
		v, err := dec.DecodeBool()
		return strconv.FormatBool(v), err
	case "string":
		return dec.DecodeString()
	default:
		if v, err := dec.DecodeInt(); err == nil {
			return strconv.FormatInt(v, 10), nil
		}
		if v, err := dec.DecodeFloat64(); err == nil {
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		}
		if v, err := dec.DecodeString(); err == nil {
			return strconv.Quote(v), nil
		}
		if v, err := dec.DecodeBool(); err == nil {
			return strconv.FormatBool(v), nil
		}
		return "", fmt.Errorf("unable to decode value with any known scalar type")
	}
}

func encodeScalar(enc codec.Encoder, typ, text string) error {
	switch typ {
	case "int":
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		return enc.EncodeInt(v)
	case "uint":
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return err
		}
		return enc.EncodeUint(v)
	case "bool":
		v, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		return enc.EncodeBool(v)
	case "string":
		return enc.EncodeString(text)
	default:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		return enc.EncodeFloat64(v)
	}
}
