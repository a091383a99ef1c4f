package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/agentoven/console/pkg/server"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect the agent registry",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(context.Background())
		if err != nil {
			return err
		}
		defer srv.Store.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tDRAFT\tCHATS\tLAST EVAL")
		for _, a := range srv.Registry.List() {
			last := "-"
			if a.Metrics.LastEvaluationScore != nil {
				last = scoreString(*a.Metrics.LastEvaluationScore)
			}
			fmt.Fprintf(w, "%s\t%s\tv%d\t%t\t%d\t%s\n",
				a.ID, a.Name, a.CurrentVersion, a.DraftConfig != nil, a.Metrics.TotalInteractions, last)
		}
		return w.Flush()
	},
}

func init() {
	agentCmd.AddCommand(agentListCmd)
}
