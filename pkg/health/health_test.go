package health

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/codec"
)

func TestStatusMarksUnhealthyAfterRetryThreshold(t *testing.T) {
	cfg := DefaultConfig()
	status := NewStatus()
	assert.True(t, status.Healthy)

	status.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.True(t, status.Healthy, "one miss should not flip health with Retries=2")

	status.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.False(t, status.Healthy, "two consecutive misses should flip health with Retries=2")
}

func TestStatusRecoversOnSuccess(t *testing.T) {
	cfg := DefaultConfig()
	status := NewStatus()
	status.Update(Result{Healthy: false}, cfg)
	status.Update(Result{Healthy: false}, cfg)
	require.False(t, status.Healthy)

	status.Update(Result{Healthy: true}, cfg)
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, status.ConsecutiveFailures)
}

func TestSocketPingCheckerHealthyOnOK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer l.Close()
	defer os.Remove(path)

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		frame, err := codec.ReadFrame(conn)
		if err != nil || frame.Request == nil || frame.Request.Op != codec.WorkerOpPing {
			return
		}
		_ = codec.WriteResponse(conn, &codec.Response{Status: "ok"})
	}()

	checker := NewSocketPingChecker(path)
	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Equal(t, CheckTypeSocketPing, checker.Type())
}

func TestSocketPingCheckerUnhealthyOnDialFailure(t *testing.T) {
	checker := NewSocketPingChecker(filepath.Join(t.TempDir(), "nobody.sock"))
	result := checker.Check(context.Background())
	assert.False(t, result.Healthy)
}
