package main

import (
	"github.com/abihf/facewatch"
	"github.com/abihf/facewatch/utils/thread"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize faces on the camera until escape is pressed",
	Args:  exactArgs(0),
	RunE:  runRecognize,
}

func init() {
	addCaptureFlags(recognizeCmd)
	recognizeCmd.Flags().Int("cpu", -1, "pin the recognition loop to this CPU core")
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	applyCaptureFlags(cmd)
	if cmd.Flags().Changed("cpu") {
		conf.CPU = mustGetInt(cmd, "cpu")
	}

	if conf.CPU >= 0 {
		unpin, err := thread.Pin(conf.CPU)
		if err != nil {
			return err
		}
		defer unpin()
	}

	session, err := facewatch.Start(conf)
	if err != nil {
		return err
	}
	return session.Run(cmd.Context())
}
