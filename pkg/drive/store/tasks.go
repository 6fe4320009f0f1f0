package store

import (
	"context"
	"strconv"
	"sync"
)

// task is one in-flight remote call.
type task struct {
	seq    uint64
	cancel context.CancelFunc
}

// taskSet tracks in-flight calls by key. Starting a call on a key that is
// already running cancels the older call and marks it superseded.
type taskSet struct {
	mu      sync.Mutex
	seq     uint64
	running map[string]*task
}

func newTaskSet() *taskSet {
	return &taskSet{running: make(map[string]*task)}
}

// key returns the task key for op on target. Operations that do not
// supersede each other get a key no other call shares.
func (ts *taskSet) key(op Op, target string) string {
	if !op.supersedes() {
		ts.mu.Lock()
		ts.seq++
		seq := ts.seq
		ts.mu.Unlock()
		return string(op) + "#" + strconv.FormatUint(seq, 10)
	}
	// Navigation replaces navigation, whatever the folder.
	if op == OpLoad || target == "" {
		return string(op)
	}
	return string(op) + ":" + target
}

// start registers a new call on key, cancelling any call it replaces.
func (ts *taskSet) start(ctx context.Context, key string) (context.Context, *task) {
	ctx, cancel := context.WithCancel(ctx)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.seq++
	t := &task{seq: ts.seq, cancel: cancel}
	if prev, ok := ts.running[key]; ok {
		prev.cancel()
	}
	ts.running[key] = t
	return ctx, t
}

// superseded reports whether a newer call replaced t.
func (ts *taskSet) superseded(key string, t *task) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.running[key] != t
}

// finish releases t.
func (ts *taskSet) finish(key string, t *task) {
	ts.mu.Lock()
	if ts.running[key] == t {
		delete(ts.running, key)
	}
	ts.mu.Unlock()
	t.cancel()
}

// inFlight returns the number of running calls.
func (ts *taskSet) inFlight() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.running)
}
