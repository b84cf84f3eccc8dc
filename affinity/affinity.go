// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for OS thread affinity and identity. Platform
// specific implementations live in separate files (affinity_linux.go,
// affinity_windows.go, affinity_stub.go) guarded by build tags.
//
// The channel and session packages use CurrentThreadID to detect
// off-thread mutation of state that is documented as single-threaded
// (spec section 5): a mismatch is logged, never treated as fatal, since
// Go goroutines are free to hop OS threads unless Pin has been called.

package affinity

import "runtime"

// Pin locks the calling goroutine to its current OS thread and sets that
// thread's CPU affinity to cpuID. Callers that want CurrentThreadID to
// return a stable value across the lifetime of an owning goroutine (a
// Channel's or Client's home goroutine, per spec section 5) should call
// Pin once before doing any other work on that goroutine.
func Pin(cpuID int) error {
	runtime.LockOSThread()
	return setAffinityPlatform(cpuID)
}

// CurrentThreadID returns a platform identifier for the OS thread the
// calling goroutine is currently running on. It is only stable across
// calls if the goroutine has called Pin, or otherwise never yields to
// the Go scheduler between calls. On platforms without a native thread
// id it returns 0, which callers must treat as "unknown" rather than a
// real thread identity.
func CurrentThreadID() uint64 {
	return currentThreadIDPlatform()
}
