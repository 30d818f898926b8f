//go:build !linux

package thread

import (
	"runtime"

	"github.com/pkg/errors"
)

func Pin(coreID int) (func(), error) {
	return nil, errors.Errorf("cpu pinning is not supported on %s", runtime.GOOS)
}
