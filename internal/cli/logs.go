package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/daemon"
	"github.com/driftwatch/driftwatch/internal/domain"
)

func init() {
	logsCmd.Flags().StringVar(&logsModel, "model", "", "Filter by model name")
	logsCmd.Flags().StringVar(&logsStatus, "status", "", "Filter by status (success, error, timeout)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum entries to show")
	rootCmd.AddCommand(logsCmd)
}

var (
	logsModel  string
	logsStatus string
	logsLimit  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent inference logs",
	RunE:  runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	filter := domain.LogFilter{
		Status: domain.InferenceStatus(logsStatus),
		Limit:  logsLimit,
	}
	if logsModel != "" {
		model, err := d.Models.FindByName(logsModel)
		if err != nil {
			return err
		}
		filter.ModelID = model.ID
	}

	logs, err := d.DB.QueryLogs(filter)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Println("No inference logs match.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODEL\tSTATUS\tLATENCY\tFEATURES")
	for _, e := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%d\n",
			e.Timestamp.Format("15:04:05"),
			e.ModelID,
			e.Status,
			e.LatencyMs,
			len(e.Features),
		)
	}
	return w.Flush()
}
