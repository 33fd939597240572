package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/corvid-labs/ago/pkg/types"
)

// Waiter provides utilities for waiting on conditions with timeouts
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a new Waiter with the given timeout and polling interval
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{
		timeout:  timeout,
		interval: interval,
	}
}

// DefaultWaiter returns a waiter with sensible defaults (30s timeout, 1s interval)
func DefaultWaiter() *Waiter {
	return NewWaiter(30*time.Second, 1*time.Second)
}

// WaitFor waits for a condition to become true
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check immediately
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitForInstanceState waits for an instance to reach a given state.
func (w *Waiter) WaitForInstanceState(ctx context.Context, client *Client, id string, state types.InstanceState) error {
	return w.WaitFor(ctx, func() bool {
		inst, err := client.Inspect(ctx, id)
		if err != nil {
			return false
		}
		return inst.State == state
	}, fmt.Sprintf("instance %s to reach state %s", id, state))
}

// WaitForInstanceReady waits for an instance to move from Starting to Ready.
func (w *Waiter) WaitForInstanceReady(ctx context.Context, client *Client, id string) error {
	return w.WaitForInstanceState(ctx, client, id, types.InstanceReady)
}

// WaitForInstanceGone waits for an instance to no longer appear in ps,
// i.e. for pkg/process.Manager.Stop to have reaped it.
func (w *Waiter) WaitForInstanceGone(ctx context.Context, client *Client, id string) error {
	return w.WaitFor(ctx, func() bool {
		instances, err := client.PS(ctx)
		if err != nil {
			return false
		}
		for _, inst := range instances {
			if inst.ID == id {
				return false
			}
		}
		return true
	}, fmt.Sprintf("instance %s to be gone", id))
}

// WaitForQueueDepth waits for an instance's inbound queue to reach a depth,
// e.g. 0 once a router delivery goroutine drains it.
func (w *Waiter) WaitForQueueDepth(ctx context.Context, client *Client, id string, depth int) error {
	return w.WaitFor(ctx, func() bool {
		stats, err := client.Queues(ctx)
		if err != nil {
			return false
		}
		for _, s := range stats {
			if s.InstanceID == id {
				return s.Depth == depth
			}
		}
		return depth == 0
	}, fmt.Sprintf("instance %s queue depth to reach %d", id, depth))
}

// WaitForTemplate waits for a template to resolve from some registry layer,
// e.g. right after a pull.
func (w *Waiter) WaitForTemplate(ctx context.Context, client *Client, name string) error {
	return w.WaitFor(ctx, func() bool {
		templates, err := client.Templates(ctx)
		if err != nil {
			return false
		}
		for _, tmpl := range templates {
			if tmpl.Name == name {
				return true
			}
		}
		return false
	}, fmt.Sprintf("template %s to resolve", name))
}

// PollUntil polls a condition until it returns true or context is cancelled
func PollUntil(ctx context.Context, interval time.Duration, condition func() bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Check immediately
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// Retry retries an operation with exponential backoff
func Retry(ctx context.Context, attempts int, initialDelay time.Duration, operation func() error) error {
	var err error
	delay := initialDelay

	for i := 0; i < attempts; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
				delay = delay * 2
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
}
