// cmd/monitor/watch.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"monitor-service/internal/client"
	"monitor-service/internal/linebuffer"
	"monitor-service/internal/model"
	"monitor-service/internal/monitor"
	"monitor-service/internal/stream"
)

var (
	watchBaud       int
	watchBoard      string
	watchFQBN       string
	watchRaw        bool
	watchTimestamps bool
	watchNoInput    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <port>",
	Short: "Follow the output of a port",
	Long: `Connect to a port and print what it sends, line by line. Lines typed
on stdin are sent to the port with the configured line ending.

With monitor.auto_connect enabled the connection is reopened after a
recoverable error, and the attached ports are polled every
monitor.port_poll_interval so an unplugged board is reconnected once it
reappears.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchBaud, "baud", "b", 0, "Baud rate (default: monitor.default_baud_rate)")
	watchCmd.Flags().StringVar(&watchBoard, "board", "", "Board name (default: identified by discovery)")
	watchCmd.Flags().StringVar(&watchFQBN, "fqbn", "", "Board FQBN")
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "Keep ANSI color sequences")
	watchCmd.Flags().BoolVarP(&watchTimestamps, "timestamps", "t", false, "Prefix lines with their arrival time")
	watchCmd.Flags().BoolVar(&watchNoInput, "no-input", false, "Do not forward stdin to the port")
}

// terminalNotifier prints connection problems between the device lines
type terminalNotifier struct {
	out io.Writer
}

func (n terminalNotifier) Info(message string)  { fmt.Fprintf(n.out, "--- %s\n", message) }
func (n terminalNotifier) Warn(message string)  { fmt.Fprintf(n.out, "--- warning: %s\n", message) }
func (n terminalNotifier) Error(message string) { fmt.Fprintf(n.out, "--- error: %s\n", message) }

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := env.config
	target, err := resolveTarget(ctx, env, args[0])
	if err != nil {
		return err
	}

	transport := stream.NewClient(env.logger)
	manager := monitor.NewManager(env.client, transport, env.client, &monitor.Config{
		LineEnding:      cfg.Monitor.LineEnding,
		BackoffUnit:     cfg.Monitor.BackoffUnit,
		MaxErrorHistory: cfg.Monitor.MaxErrorHistory,
		ConnectTimeout:  cfg.Client.RequestTimeout,
		Notifier:        terminalNotifier{out: cmd.ErrOrStderr()},
	}, env.logger)

	view := linebuffer.NewView(linebuffer.DefaultSeparator, cfg.Monitor.MaxChars)
	printer := newLinePrinter(cmd.OutOrStdout(), linebuffer.DefaultSeparator, watchRaw, watchTimestamps)
	manager.OnMessages(func(batch []string) {
		view.Apply(batch)
		if err := printer.Print(view.Snapshot()); err != nil {
			env.logger.Warn("Failed to print lines", zap.Error(err))
		}
	})
	manager.OnConnectionChanged(func(current *model.MonitorConfig) {
		if current == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "--- disconnected")
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "--- connected to %s at %s baud\n", current, current.BaudRate)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := env.client.Watch(gctx, client.EventHandlers{
			OnError: func(merr model.MonitorError) {
				manager.HandleError(gctx, merr)
			},
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Monitor.AutoConnect {
		g.Go(func() error {
			if err := manager.WatchPorts(gctx, cfg.Monitor.PortPollInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if status := start(ctx, manager, target, cfg.Monitor.AutoConnect); !status.IsOK() {
		if !cfg.Monitor.AutoConnect {
			stop()
			_ = g.Wait()
			return fmt.Errorf("failed to connect to %s: %s", target.Port.Address, status.Error())
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "--- waiting for %s: %s\n", target.Port.Address, status.Error())
	}

	if !watchNoInput {
		go forwardInput(ctx, cmd.InOrStdin(), manager, env.logger)
	}

	<-ctx.Done()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.SetAutoConnect(disconnectCtx, false)
	manager.Disconnect(disconnectCtx)

	return g.Wait()
}

// resolveTarget builds the monitor config for address, filling the board
// from discovery when no flag names it
func resolveTarget(ctx context.Context, env *environment, address string) (model.MonitorConfig, error) {
	baud := model.BaudRate(watchBaud)
	if baud == 0 {
		baud = model.BaudRate(env.config.Monitor.DefaultBaudRate)
	}
	if err := model.ValidateBaudRate(baud); err != nil {
		return model.MonitorConfig{}, err
	}

	target := model.MonitorConfig{
		Board:    model.BoardRef{Name: watchBoard, FQBN: watchFQBN},
		Port:     model.PortRef{Address: address, Protocol: "serial"},
		BaudRate: baud,
	}
	if watchBoard != "" || watchFQBN != "" {
		return target, nil
	}

	ports, err := env.client.ListPorts(ctx)
	if err != nil {
		env.logger.Warn("Board lookup failed", zap.Error(err))
		return target, nil
	}
	for _, p := range ports {
		if p.Port.Address == address && p.Board != nil {
			target.Board = *p.Board
			break
		}
	}
	return target, nil
}

// start opens the monitor directly, or hands the selection to the
// auto-connect policy
func start(ctx context.Context, manager *monitor.Manager, target model.MonitorConfig, autoConnect bool) model.Status {
	if !autoConnect {
		return manager.Connect(ctx, target)
	}
	manager.SetSelection(ctx, target.Board, target.Port)
	manager.SetBaudRate(ctx, target.BaudRate)
	manager.SetAutoConnect(ctx, true)
	return manager.MarkReady(ctx)
}

func forwardInput(ctx context.Context, in io.Reader, manager *monitor.Manager, logger *zap.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if status := manager.Send(ctx, scanner.Text()); !status.IsOK() {
			logger.Warn("Line not sent", zap.String("reason", status.Error()))
		}
	}
}
