package main

import (
	"fmt"
	"io"
	"os"

	"github.com/abihf/facewatch"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build the model and label file from data/train",
	Long: `Train reads every identity directory under <data>/train, normalizes the
sample images to 200x200 grayscale and fits the LBPH model. The model is
written to <data>/face_model.yml and the labels to <data>/labels.txt.`,
	Args: exactArgs(0),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().Bool("quiet", false, "hide the progress bar")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	var progress io.Writer = os.Stderr
	if mustGetBool(cmd, "quiet") {
		progress = nil
	}

	report, err := facewatch.Train(conf, facewatch.TrainOptions{Progress: progress})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range report.Identities {
		fmt.Fprintf(out, "  %s\n", name)
	}
	for _, name := range report.Empty {
		fmt.Fprintf(out, "  %s (no usable samples, not trained)\n", name)
	}
	fmt.Fprintf(out, "Trained %d identities from %d samples", len(report.Identities), report.Samples)
	if report.Skipped > 0 {
		fmt.Fprintf(out, " (%d unreadable files skipped)", report.Skipped)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Model:  %s\n", report.ModelPath)
	fmt.Fprintf(out, "Labels: %s\n", report.LabelsPath)
	return nil
}
