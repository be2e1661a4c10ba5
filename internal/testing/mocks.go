package testing

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
)

// FakeRunner is a scripted shell.Runner. Responses are matched by command
// line prefix, most recently registered first. Unscripted commands fail.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []string
	handlers []fakeHandler
	paths    map[string]string
}

type fakeHandler struct {
	prefix string
	fn     func(args []string) (shell.Result, error)
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{paths: make(map[string]string)}
}

// On scripts a fixed response for command lines starting with prefix.
func (f *FakeRunner) On(prefix string, res shell.Result, err error) *FakeRunner {
	return f.OnFunc(prefix, func([]string) (shell.Result, error) { return res, err })
}

// OnFunc scripts a dynamic response. fn receives the full argv.
func (f *FakeRunner) OnFunc(prefix string, fn func(args []string) (shell.Result, error)) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fakeHandler{prefix: prefix, fn: fn})
	return f
}

// Fail scripts a non-zero exit for command lines starting with prefix.
func (f *FakeRunner) Fail(prefix string, exitCode int, stderr string) *FakeRunner {
	return f.OnFunc(prefix, func(args []string) (shell.Result, error) {
		res := shell.Result{Stderr: stderr, ExitCode: exitCode}
		return res, &shell.CommandError{Command: strings.Join(args, " "), ExitCode: exitCode, Stderr: stderr}
	})
}

// WithBinary makes LookPath resolve name.
func (f *FakeRunner) WithBinary(names ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.paths[n] = "/usr/bin/" + n
	}
	return f
}

// Run implements shell.Runner.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (shell.Result, error) {
	argv := append([]string{name}, args...)
	line := strings.Join(argv, " ")

	f.mu.Lock()
	f.calls = append(f.calls, line)
	var handler *fakeHandler
	for i := len(f.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.handlers[i].prefix) {
			handler = &f.handlers[i]
			break
		}
	}
	f.mu.Unlock()

	if handler == nil {
		return shell.Result{}, &shell.CommandError{Command: line, Err: fmt.Errorf("unscripted command")}
	}
	return handler.fn(argv)
}

// LookPath implements shell.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns every command line run so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports how many command lines started with prefix.
func (f *FakeRunner) Called(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// MockBucketClient is a mock implementation of the storage bucket client.
type MockBucketClient struct {
	mock.Mock
}

// EnsureBucket returns whether the bucket was newly created.
func (m *MockBucketClient) EnsureBucket(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

// MockMounter is a mock implementation of the storage mounter.
type MockMounter struct {
	mock.Mock
}

// IsMounted reports whether path is a mount point.
func (m *MockMounter) IsMounted(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

// Mount attaches bucket at path.
func (m *MockMounter) Mount(ctx context.Context, bucket, path, region string) error {
	args := m.Called(ctx, bucket, path, region)
	return args.Error(0)
}

// Unmount detaches path.
func (m *MockMounter) Unmount(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}
