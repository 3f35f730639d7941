package application

import "sync/atomic"

// BuildingFlag records that at least one deployment may be in progress. It is
// set by the command layer and cleared by the reconciler. Reads and writes are
// lock-free; Set also wakes an idle reconciler.
//
// The state word packs a generation counter above the low "set" bit, so the
// reconciler can clear only if nobody raised the flag again mid-poll.
type BuildingFlag struct {
	state atomic.Uint64
	wake  chan struct{}
}

// NewBuildingFlag returns a cleared flag.
func NewBuildingFlag() *BuildingFlag {
	return &BuildingFlag{wake: make(chan struct{}, 1)}
}

// Set raises the flag and starts a new generation. The wake signal is
// coalesced.
func (f *BuildingFlag) Set() {
	for {
		old := f.state.Load()
		next := ((old>>1)+1)<<1 | 1
		if f.state.CompareAndSwap(old, next) {
			break
		}
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Clear lowers the flag unconditionally.
func (f *BuildingFlag) Clear() {
	for {
		old := f.state.Load()
		if f.state.CompareAndSwap(old, old&^1) {
			return
		}
	}
}

// Observe returns an opaque token for the current state, for use with
// ClearIfUnchanged.
func (f *BuildingFlag) Observe() uint64 {
	return f.state.Load()
}

// ClearIfUnchanged lowers the flag only if it has not been Set since token
// was observed. It reports whether the flag was lowered.
func (f *BuildingFlag) ClearIfUnchanged(token uint64) bool {
	if token&1 == 0 {
		return false
	}
	return f.state.CompareAndSwap(token, token&^1)
}

// IsSet reports whether the flag is raised.
func (f *BuildingFlag) IsSet() bool {
	return f.state.Load()&1 == 1
}

// Wake returns a channel that receives after Set. At most one signal is
// buffered.
func (f *BuildingFlag) Wake() <-chan struct{} {
	return f.wake
}
