// cmd/monitor/send.go
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"monitor-service/internal/model"
	"monitor-service/internal/monitor"
)

var (
	sendNoEOL bool

	baudBoard string
	baudFQBN  string

	eventsLimit int
	eventsPort  string
)

var sendCmd = &cobra.Command{
	Use:   "send <message>...",
	Short: "Send a line to the connected port",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var baudCmd = &cobra.Command{
	Use:   "baud <port> <rate>",
	Short: "Change the baud rate of a port",
	Long: `Change the baud rate of a port. The open monitor switches at once;
otherwise the rate is used by the next connection.`,
	Args: cobra.ExactArgs(2),
	RunE: runBaud,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the connection journal",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	sendCmd.Flags().BoolVar(&sendNoEOL, "no-eol", false, "Do not append the configured line ending")

	baudCmd.Flags().StringVar(&baudBoard, "board", "", "Board name")
	baudCmd.Flags().StringVar(&baudFQBN, "fqbn", "", "Board FQBN")

	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Number of entries")
	eventsCmd.Flags().StringVarP(&eventsPort, "port", "p", "", "Only entries for this port")
}

func runSend(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	message := strings.Join(args, " ")
	if !sendNoEOL {
		message += env.config.Monitor.LineEnding
	}
	if status := env.client.Send(cmd.Context(), message); !status.IsOK() {
		return fmt.Errorf("send failed: %s", status.Error())
	}
	return nil
}

func runBaud(cmd *cobra.Command, args []string) error {
	rate, err := model.ParseBaudRate(args[1])
	if err != nil {
		return err
	}

	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	settings := monitor.NewSettings(env.client, nil, env.logger)
	port := model.PortRef{Address: args[0], Protocol: "serial"}
	board := model.BoardRef{Name: baudBoard, FQBN: baudFQBN}

	supported, status := settings.ChangeBaudRate(cmd.Context(), board, port, rate)
	if !status.IsOK() {
		return fmt.Errorf("failed to change baud rate: %s", status.Error())
	}
	if !supported {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no adjustable baud rate\n", port.Address)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s baud\n", port.Address, rate)
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	events, err := env.client.Events(cmd.Context(), eventsPort, eventsLimit)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	out := cmd.OutOrStdout()
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		line := fmt.Sprintf("%s  %-20s %s", e.OccurredAt.Local().Format("2006-01-02 15:04:05"), e.EventType, e.Config.Port.Address)
		if e.Config.BaudRate != 0 {
			line += " @" + e.Config.BaudRate.String()
		}
		if e.Code != nil {
			line += " [" + string(*e.Code) + "]"
		}
		if e.Message != "" {
			line += "  " + e.Message
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
