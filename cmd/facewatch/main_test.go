package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abihf/facewatch/errdefs"
)

func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	t.Setenv("FACEWATCH_CONFIG", "")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { dataDir, configPath = "", "" })
	return Execute(), out.String()
}

func TestVersion(t *testing.T) {
	code, out := run(t, "version")
	if code != errdefs.ExitOK {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(out, "facewatch dev") {
		t.Errorf("output = %q", out)
	}
}

func TestExitCodes(t *testing.T) {
	emptyData := t.TempDir()
	if err := os.MkdirAll(filepath.Join(emptyData, "train", "alice"), 0o755); err != nil {
		t.Fatal(err)
	}
	collidingData := t.TempDir()
	for _, name := range []string{"Ren\u00e9", "Rene\u0301"} {
		if err := os.MkdirAll(filepath.Join(collidingData, "train", name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing corpus", []string{"--data", t.TempDir(), "train", "--quiet"}, errdefs.ExitCorpusNotFound},
		{"empty corpus", []string{"--data", emptyData, "train", "--quiet"}, errdefs.ExitEmptyCorpus},
		{"colliding identity names", []string{"--data", collidingData, "train", "--quiet"}, errdefs.ExitCorpusNotFound},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "labels"}, errdefs.ExitFailure},
		{"missing labels", []string{"--data", t.TempDir(), "labels"}, errdefs.ExitResourceLoadFailed},
		{"missing camera", []string{"--data", t.TempDir(), "recognize", "--headless", "--device", "/nonexistent/video.avi"}, errdefs.ExitDeviceUnavailable},
		{"extra argument", []string{"train", "now"}, errdefs.ExitUsage},
		{"unknown flag", []string{"train", "--fast"}, errdefs.ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := run(t, tt.args...); code != tt.want {
				t.Errorf("facewatch %v exited %d, want %d", tt.args, code, tt.want)
			}
		})
	}
}
