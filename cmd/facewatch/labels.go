package main

import (
	"fmt"
	"os"

	"github.com/abihf/facewatch/facerec"
	"github.com/abihf/facewatch/labels"
	"github.com/spf13/cobra"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Show the label registry and the model it belongs to",
	Args:  exactArgs(0),
	RunE:  runLabels,
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}

func runLabels(cmd *cobra.Command, args []string) error {
	reg, err := labels.LoadFile(conf.LabelsPath())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range reg.IDs() {
		fmt.Fprintf(out, "%d\t%s\n", id, reg.Name(id))
	}

	meta, err := facerec.ReadMetadata(conf.ModelPath())
	if err != nil {
		if _, statErr := os.Stat(conf.ModelPath()); os.IsNotExist(statErr) {
			fmt.Fprintf(out, "\nNo model at %s\n", conf.ModelPath())
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "\nModel %s\n", conf.ModelPath())
	fmt.Fprintf(out, "  run:        %s\n", meta.RunID)
	fmt.Fprintf(out, "  created:    %s\n", meta.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  samples:    %d\n", meta.Samples)
	fmt.Fprintf(out, "  identities: %d\n", meta.Identities)
	fmt.Fprintf(out, "  lbph:       radius=%d neighbors=%d grid=%dx%d threshold=%.1f\n",
		meta.Params.Radius, meta.Params.Neighbors, meta.Params.GridX, meta.Params.GridY, meta.Params.Threshold)
	if meta.Labels > 0 && meta.Labels != reg.Len() {
		fmt.Fprintf(out, "  warning: model was trained with %d labels, label file lists %d, retrain\n",
			meta.Labels, reg.Len())
	}
	return nil
}
