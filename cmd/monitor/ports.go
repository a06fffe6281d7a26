// cmd/monitor/ports.go
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List attached ports and the boards behind them",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

func runPorts(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	ports, err := env.client.ListPorts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No ports found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tBOARD\tFQBN\tVENDOR\tVID:PID")
	for _, p := range ports {
		board, fqbn := "-", "-"
		if p.Board != nil {
			board, fqbn = p.Board.Name, p.Board.FQBN
		}
		vendor := p.Vendor
		if vendor == "" {
			vendor = "-"
		}
		ids := "-"
		if p.Port.VID != "" {
			ids = p.Port.VID + ":" + p.Port.PID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Port.Address, board, fqbn, vendor, ids)
	}
	return w.Flush()
}
