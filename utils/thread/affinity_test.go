//go:build linux

package thread

import (
	"runtime"
	"testing"
)

func TestPin(t *testing.T) {
	unpin, err := Pin(0)
	if err != nil {
		t.Skipf("cpu 0 not available to this process: %v", err)
	}
	unpin()

	if _, err := Pin(-1); err == nil {
		t.Error("Pin(-1) succeeded")
	}
	if _, err := Pin(runtime.NumCPU()); err == nil {
		t.Error("Pin(NumCPU) succeeded")
	}
}
