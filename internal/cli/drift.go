package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/daemon"
	"github.com/driftwatch/driftwatch/internal/domain"
)

func init() {
	driftCheckCmd.Flags().DurationVar(&driftCheckWindow, "window", 0,
		"inference window to analyze (default: configured drift window)")
	driftCmd.AddCommand(driftCheckCmd)
	driftCmd.AddCommand(driftCheckAllCmd)
	driftCmd.AddCommand(driftSummaryCmd)
	driftCmd.AddCommand(driftAlertsCmd)
	rootCmd.AddCommand(driftCmd)
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Run and inspect drift checks",
}

var driftCheckCmd = &cobra.Command{
	Use:   "check MODEL",
	Short: "Run a drift check for one model",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriftCheck,
}

var driftCheckWindow time.Duration

func runDriftCheck(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	model, err := d.Models.FindByName(args[0])
	if err != nil {
		return err
	}
	outcome, err := d.Monitor.CheckModel(context.Background(), model.ID, driftCheckWindow)
	if err != nil {
		return err
	}
	printOutcome(model.Name, outcome)
	return nil
}

var driftCheckAllCmd = &cobra.Command{
	Use:   "check-all",
	Short: "Run drift checks across all deployed models",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		batch, err := d.Monitor.CheckAll(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Checked %d models: %d ok, %d no data, %d failed\n",
			batch.Total, batch.SuccessfulChecks, batch.NoDataChecks, batch.FailedChecks)
		for id, reason := range batch.Errors {
			fmt.Printf("  %s: %s\n", id, reason)
		}
		return nil
	},
}

var driftSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the accumulated drift summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := d.Monitor.Summary()
		if err != nil {
			return err
		}
		fmt.Printf("Checks: %d  Drift detected: %d  Rate: %.1f%%  Active alerts: %d\n",
			s.TotalChecks, s.DriftDetected, s.DetectionRate*100, s.ActiveAlerts)
		for sev, n := range s.BySeverity {
			fmt.Printf("  %s: %d\n", sev, n)
		}
		return nil
	},
}

var driftAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List active drift alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		alerts, err := d.DB.ListAlerts()
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tSEVERITY\tFEATURES\tRAISED")
		for _, a := range alerts {
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\n",
				a.ModelID, a.Severity, a.Features, a.Timestamp.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func printOutcome(name string, outcome domain.CheckOutcome) {
	if outcome.NoData {
		fmt.Printf("%s: no data (%s, %d samples)\n", name, outcome.NoDataReason, outcome.Samples)
		return
	}
	r := outcome.Report
	fmt.Printf("%s: drift=%v severity=%s (%d/%d features)\n",
		name, r.OverallDetected, r.OverallSeverity,
		r.Summary.FeaturesDrifted, r.Summary.FeaturesAnalyzed)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tTYPE\tSCORE\tTHRESHOLD\tSEVERITY")
	for _, res := range r.Results {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f\t%s\n",
			res.FeatureName, res.FeatureType, res.DriftScore, res.Threshold, res.Severity)
	}
	w.Flush()
}
