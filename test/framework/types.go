package framework

import (
	"context"
	"time"
)

// DaemonConfig configures a single test daemon instance.
type DaemonConfig struct {
	// Binary is the path to the ago binary under test.
	Binary string
	// BaseDir is the per-daemon state directory ($HOME/.ago equivalent);
	// each test gets its own so daemons never share a control socket.
	BaseDir string
	// LogLevel is passed through as --log-level.
	LogLevel string
	// KeepOnFailure leaves BaseDir on disk if the test fails, for inspection.
	KeepOnFailure bool
}

// Process is defined in process.go (to avoid duplication)

// TestContext provides utilities for test execution
type TestContext struct {
	// T is the testing.T instance
	T TestingT
	// Ctx is the context for test operations
	Ctx context.Context
	// Cancel cancels the test context
	Cancel context.CancelFunc
	// Timeout is the default timeout for operations
	Timeout time.Duration
	// Cleanup functions to run after test
	cleanup []func()
}

// TestingT is an interface matching testing.T
type TestingT interface {
	Logf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	FailNow()
	Failed() bool
	Name() string
	Helper()
}
