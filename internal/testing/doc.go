// Package testing provides test utilities, builders, and fakes for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for test configurations rooted in a temp dir
//   - FakeRunner: Scripted shell.Runner for phases that call external tools
//   - MockBucketClient, MockMounter: testify mocks for the storage provisioner
//
// Usage:
//
//	cfg := testing.NewConfigBuilder(t.TempDir()).
//	    WithStorageIdentity("i-0abc").
//	    Build()
//
//	runner := testing.NewFakeRunner().
//	    WithBinary("docker").
//	    On("docker info", shell.Result{Stdout: `"27.1.1"`}, nil)
package testing
