package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/daemon"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(rmCmd)
}

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"ls"},
	Short:   "List registered models and their lifecycle state",
	RunE:    runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	models, err := d.Models.List()
	if err != nil {
		return err
	}

	if len(models) == 0 {
		fmt.Println("No models registered. Push a model to the webhook to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tUPDATED")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.ID,
			m.Name,
			m.Version,
			m.Status,
			m.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

var rmCmd = &cobra.Command{
	Use:   "rm MODEL",
	Short: "Remove a registered model",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	model, err := d.Models.FindByName(args[0])
	if err != nil {
		return err
	}
	if err := d.Models.Delete(model.ID); err != nil {
		return err
	}

	fmt.Printf("Removed %s (%s)\n", model.Name, model.ID)
	return nil
}
