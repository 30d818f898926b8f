package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// applyCaptureFlags copies explicitly set capture and display flags into conf.
func applyCaptureFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("device") {
		conf.Capture.Device = mustGetString(cmd, "device")
	}
	if cmd.Flags().Changed("backend") {
		conf.Capture.Backend = mustGetString(cmd, "backend")
	}
	if cmd.Flags().Changed("detector") {
		conf.Detector.Kind = mustGetString(cmd, "detector")
	}
	if cmd.Flags().Changed("headless") {
		conf.Display.Headless = mustGetBool(cmd, "headless")
	}
}

func addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().String("device", "", "camera index, device path, video file or stream URL")
	cmd.Flags().String("backend", "", "capture backend: gocv or v4l2")
	cmd.Flags().String("detector", "", "face detector: haar or dnn")
	cmd.Flags().Bool("headless", false, "do not open a window")
}
