package framework

import (
	"context"
	"time"

	"github.com/corvid-labs/ago/pkg/types"
)

// Assertions provides test assertion helpers
type Assertions struct {
	t TestingT
}

// NewAssertions creates a new Assertions instance
func NewAssertions(t TestingT) *Assertions {
	return &Assertions{t: t}
}

func (a *Assertions) findInstance(ctx context.Context, c *Client, id string) *types.Instance {
	a.t.Helper()
	inst, err := c.Inspect(ctx, id)
	if err != nil {
		a.t.Fatalf("instance %s does not exist: %v", id, err)
		return nil
	}
	return &inst
}

// InstanceExists asserts that an agent instance is known to the daemon.
func (a *Assertions) InstanceExists(ctx context.Context, id string, c *Client) {
	a.t.Helper()
	a.findInstance(ctx, c, id)
}

// InstanceState asserts an instance is currently in the given state.
func (a *Assertions) InstanceState(ctx context.Context, id string, want types.InstanceState, c *Client) {
	a.t.Helper()
	inst := a.findInstance(ctx, c, id)
	if inst == nil {
		return
	}
	if inst.State != want {
		a.t.Fatalf("instance %s is in state %s, want %s", id, inst.State, want)
	}
}

// InstanceReady asserts an instance has reached InstanceReady.
func (a *Assertions) InstanceReady(ctx context.Context, id string, c *Client) {
	a.t.Helper()
	a.InstanceState(ctx, id, types.InstanceReady, c)
}

// InstanceGone asserts an instance no longer appears in ps.
func (a *Assertions) InstanceGone(ctx context.Context, id string, c *Client) {
	a.t.Helper()
	instances, err := c.PS(ctx)
	if err != nil {
		a.t.Fatalf("failed to list instances: %v", err)
	}
	for _, inst := range instances {
		if inst.ID == id {
			a.t.Fatalf("instance %s still present, expected it gone", id)
		}
	}
}

// QueueDepth asserts an instance's inbound queue has the expected depth.
func (a *Assertions) QueueDepth(ctx context.Context, id string, expected int, c *Client) {
	a.t.Helper()
	stats, err := c.Queues(ctx)
	if err != nil {
		a.t.Fatalf("failed to fetch queue stats: %v", err)
	}
	for _, s := range stats {
		if s.InstanceID == id {
			if s.Depth != expected {
				a.t.Fatalf("instance %s queue depth is %d, expected %d", id, s.Depth, expected)
			}
			return
		}
	}
	if expected != 0 {
		a.t.Fatalf("instance %s has no queue stats, expected depth %d", id, expected)
	}
}

// TemplateExists asserts name resolves from the daemon's registry layers.
func (a *Assertions) TemplateExists(ctx context.Context, name string, c *Client) {
	a.t.Helper()
	templates, err := c.Templates(ctx)
	if err != nil {
		a.t.Fatalf("failed to list templates: %v", err)
	}
	for _, tmpl := range templates {
		if tmpl.Name == name {
			return
		}
	}
	a.t.Fatalf("template %s not found", name)
}

// Logf logs a formatted message (non-failing)
func (a *Assertions) Logf(format string, args ...interface{}) {
	a.t.Helper()
	a.t.Logf(format, args...)
}

// Log logs a message (non-failing)
func (a *Assertions) Log(msg string) {
	a.t.Helper()
	a.t.Logf("%s", msg)
}

// Step logs a test step (for visibility in test output)
func (a *Assertions) Step(step string) {
	a.t.Helper()
	a.t.Logf("\n==> %s", step)
}

// Success logs a success message
func (a *Assertions) Success(msg string) {
	a.t.Helper()
	a.t.Logf("✓ %s", msg)
}

// Info logs an informational message
func (a *Assertions) Info(msg string) {
	a.t.Helper()
	a.t.Logf("ℹ %s", msg)
}

// Warning logs a warning message
func (a *Assertions) Warning(msg string) {
	a.t.Helper()
	a.t.Logf("⚠ %s", msg)
}

// Errorf logs an error and fails the test
func (a *Assertions) Errorf(format string, args ...interface{}) {
	a.t.Helper()
	a.t.Errorf(format, args...)
}

// Fatalf logs a fatal error and stops the test immediately
func (a *Assertions) Fatalf(format string, args ...interface{}) {
	a.t.Helper()
	a.t.Fatalf(format, args...)
}

// FailNow fails the test immediately without logging
func (a *Assertions) FailNow() {
	a.t.Helper()
	a.t.FailNow()
}

// Fail marks the test as failed but continues execution
func (a *Assertions) Fail(msg string) {
	a.t.Helper()
	a.t.Errorf("Test failed: %s", msg)
}

// Eventually retries condition until it returns true or timeout elapses,
// failing the test if it never does.
func (a *Assertions) Eventually(ctx context.Context, timeout time.Duration, condition func() bool, description string) {
	a.t.Helper()
	waiter := NewWaiter(timeout, 100*time.Millisecond)
	if err := waiter.WaitFor(ctx, condition, description); err != nil {
		a.t.Fatalf("%v", err)
	}
}
