package main

import (
	"fmt"

	"github.com/abihf/facewatch"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name>",
	Short: "Capture face samples of one person into data/train/<name>",
	Long: `Enroll takes face crops from the camera whenever exactly one face is in
view and saves them as training samples. Run "facewatch train" afterwards
to rebuild the model.`,
	Args: exactArgs(1),
	RunE: runEnroll,
}

func init() {
	addCaptureFlags(enrollCmd)
	enrollCmd.Flags().Int("samples", 0, "number of samples to take (default from config)")
	enrollCmd.Flags().Duration("interval", 0, "pause between samples (default from config)")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	applyCaptureFlags(cmd)
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return err
	}

	saved, err := facewatch.Enroll(cmd.Context(), conf, facewatch.EnrollOptions{
		Name:     args[0],
		Samples:  mustGetInt(cmd, "samples"),
		Interval: interval,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d samples of %s\n", len(saved), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), `Run "facewatch train" to update the model.`)
	return nil
}
