//go:build linux

package thread

/*
   #define _GNU_SOURCE
   #include <sched.h>
   #include <pthread.h>

   int set_cpu_affinity(int core_id) {
       cpu_set_t cpuset;
       CPU_ZERO(&cpuset);
       CPU_SET(core_id, &cpuset);
       return pthread_setaffinity_np(pthread_self(), sizeof(cpu_set_t), &cpuset);
   }
*/
import "C"

import (
	"runtime"

	"github.com/pkg/errors"
)

// Pin locks the calling goroutine to its OS thread and restricts that
// thread to coreID. The returned func undoes the lock, the affinity stays
// with the thread.
func Pin(coreID int) (func(), error) {
	if coreID < 0 || coreID >= runtime.NumCPU() {
		return nil, errors.Errorf("cpu %d out of range 0..%d", coreID, runtime.NumCPU()-1)
	}
	runtime.LockOSThread()
	if rc := C.set_cpu_affinity(C.int(coreID)); rc != 0 {
		runtime.UnlockOSThread()
		return nil, errors.Errorf("pthread_setaffinity_np failed with code %d", int(rc))
	}
	return runtime.UnlockOSThread, nil
}
