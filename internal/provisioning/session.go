package provisioning

import (
	"context"
	"fmt"
	"sync"
)

// Resource names an external resource whose lifetime the session tracks.
type Resource string

// Tracked resources.
const (
	ResourceBucket    Resource = "bucket"
	ResourceMount     Resource = "mount"
	ResourceDashboard Resource = "dashboard"
	ResourceMonitor   Resource = "monitor"
)

// StorageIdentity is the host-derived name of the model bucket and its mount.
type StorageIdentity struct {
	// Source is where HostID came from: "override", "imds" or "machine-id".
	Source     string
	HostID     string
	BucketName string
	MountName  string
}

// ParameterSet holds the tuning values the serving process is launched with.
// Every field is always positive.
type ParameterSet struct {
	TensorParallelSize int
	MaxModelLen        int
	MaxNumSeqs         int
	BlockSize          int
	// Detected is true when at least one value came from the detector.
	Detected bool
}

// TaskHandle is a running auxiliary process the session can stop.
type TaskHandle interface {
	Stop(ctx context.Context) error
	Done() <-chan struct{}
}

// Teardown releases one acquired resource.
type Teardown struct {
	Resource Resource
	Name     string
	Release  func(ctx context.Context) error
}

// Session is the mutable state of one deployment run.
type Session struct {
	mu        sync.Mutex
	state     State
	history   []State
	acquired  map[Resource]bool
	teardowns []Teardown

	Identity  StorageIdentity
	MountPath string
	ModelPath string
	Params    ParameterSet
	Monitor   TaskHandle
}

// NewSession returns a session in StateInit.
func NewSession() *Session {
	return &Session{
		state:    StateInit,
		history:  []State{StateInit},
		acquired: make(map[Resource]bool),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state the session has been in, oldest first.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.history...)
}

// Advance moves the session to next, rejecting backward or skipping moves.
func (s *Session) Advance(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(next) {
		return fmt.Errorf("invalid state transition %s -> %s", s.state, next)
	}
	s.state = next
	s.history = append(s.history, next)
	return nil
}

// Acquire marks r as acquired and registers its teardown. Call it only after
// the resource has been verified. release may be nil for resources that
// outlive the run.
func (s *Session) Acquire(r Resource, name string, release func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired[r] = true
	if release != nil {
		s.teardowns = append(s.teardowns, Teardown{Resource: r, Name: name, Release: release})
	}
}

// Acquired reports whether r was acquired and not yet released.
func (s *Session) Acquired(r Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired[r]
}

// Retain drops the teardown for r so the resource survives the run.
func (s *Session) Retain(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.teardowns[:0]
	for _, td := range s.teardowns {
		if td.Resource != r {
			kept = append(kept, td)
		}
	}
	s.teardowns = kept
}

// released clears the acquired flag once a teardown succeeded.
func (s *Session) released(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.acquired, r)
}

// Teardowns returns the registered teardowns in registration order.
func (s *Session) Teardowns() []Teardown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Teardown(nil), s.teardowns...)
}

func (s *Session) clearTeardowns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardowns = nil
}
