package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abihf/facewatch/config"
	"github.com/abihf/facewatch/errdefs"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataDir    string
	verbose    bool

	// conf is loaded before any subcommand runs
	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "facewatch",
	Short: "Train an LBPH face recognizer and run it on a live camera",
	Long: `facewatch trains a face recognition model from a directory of labelled
sample images (data/train/<name>/*.png) and recognizes those people in a
live video stream, drawing their names over the picture.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			c.DataDir = dataDir
		}
		conf = c
		return nil
	},
}

// usageError marks errors caused by bad command line input.
type usageError struct{ error }

func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return errdefs.ExitOK
	}
	fmt.Fprintln(os.Stderr, "Error:", err)

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr, "Run 'facewatch --help' for usage.")
		return errdefs.ExitUsage
	}
	return errdefs.ExitCode(err)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default facewatch.yaml or $FACEWATCH_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "data directory holding train/, the model and the label file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
