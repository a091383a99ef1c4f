package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/agentoven/console/internal/eval"
	"github.com/agentoven/console/pkg/models"
	"github.com/agentoven/console/pkg/server"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var suiteAgentID string

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Manage evaluation suites",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var suiteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suites with their latest score",
	RunE:  runSuiteList,
}

var suiteRunCmd = &cobra.Command{
	Use:   "run <suite-id>",
	Short: "Run a suite against an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuiteRun,
}

func init() {
	suiteRunCmd.Flags().StringVarP(&suiteAgentID, "agent", "a", "", "agent id (required)")
	suiteRunCmd.MarkFlagRequired("agent")
	suiteCmd.AddCommand(suiteListCmd)
	suiteCmd.AddCommand(suiteRunCmd)
}

func runSuiteList(cmd *cobra.Command, args []string) error {
	srv, err := server.New(context.Background())
	if err != nil {
		return err
	}
	defer srv.Store.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCASES\tLAST SCORE")
	for _, s := range srv.Eval.Suites() {
		last := "-"
		if runs := srv.Eval.Runs(s.ID); len(runs) > 0 {
			last = scoreString(runs[0].OverallScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Name, len(s.Cases), last)
	}
	return w.Flush()
}

func runSuiteRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv, err := server.New(ctx)
	if err != nil {
		return err
	}
	defer srv.Store.Close()
	defer srv.ShutdownFunc(context.Background())

	agent, ok := srv.Registry.Get(suiteAgentID)
	if !ok {
		return fmt.Errorf("agent %q not found", suiteAgentID)
	}

	run, err := srv.Eval.RunSuite(ctx, args[0], agent)
	switch {
	case errors.Is(err, eval.ErrEmptySuite):
		fmt.Println(color.YellowString("Suite has no cases; nothing to run."))
		return nil
	case err != nil:
		return err
	}
	printRun(run)
	return nil
}

func printRun(run models.EvaluationRun) {
	fmt.Printf("%s × %s v%d\n", run.SuiteName, run.AgentName, run.AgentVersion)
	fmt.Println("─────────────────────")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tSCORE\tREASONING")
	for _, r := range run.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.TestCaseID, scoreString(r.Score), r.Reasoning)
	}
	w.Flush()
	fmt.Printf("\nOverall: %s\n", scoreString(run.OverallScore))
}

func scoreString(score int) string {
	if score >= models.PassThreshold {
		return color.GreenString("%d", score)
	}
	return color.RedString("%d", score)
}
