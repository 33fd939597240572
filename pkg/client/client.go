package client

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/control"
	"github.com/corvid-labs/ago/pkg/types"
)

// DialTimeout bounds connecting to the control socket.
const DialTimeout = 5 * time.Second

// Client dials ago's control socket, one connection per call.
type Client struct {
	socketPath string
}

// New returns a Client targeting the control socket at socketPath.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dctx, "unix", c.socketPath)
	if err != nil {
		return nil, types.NewError(types.KindSocketIO, c.socketPath, err)
	}
	return conn, nil
}

// watchContext closes conn the moment ctx is done, so a blocking
// ReadFrame/Write on it unblocks with an error instead of hanging past
// caller cancellation. The returned stop func must be called once the
// round trip finishes normally, to release the watching goroutine.
func watchContext(ctx context.Context, conn net.Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// call performs one request/response round trip: dial, write req with the
// given op and args, read exactly one terminal Response, and unmarshal
// its payload into out (which may be nil).
func (c *Client) call(ctx context.Context, op string, args, out interface{}) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer watchContext(ctx, conn)()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req, err := buildRequest(op, args)
	if err != nil {
		return err
	}
	if err := codec.WriteRequest(conn, req); err != nil {
		return types.NewError(types.KindSocketIO, op, err)
	}

	frame, err := codec.ReadFrame(conn)
	if err != nil {
		return types.NewError(types.KindSocketIO, op, err)
	}
	if frame.Response == nil {
		return types.NewError(types.KindDecodeFailure, op+": expected a response frame", nil)
	}
	return decodeResponse(frame.Response, out)
}

// streamCall is like call but for ops that emit Event frames before their
// terminal Response: onEvent is invoked for each Event, in order, and the
// terminal Response's payload is unmarshalled into out.
func (c *Client) streamCall(ctx context.Context, op string, args, out interface{}, onEvent func(codec.Event)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer watchContext(ctx, conn)()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req, err := buildRequest(op, args)
	if err != nil {
		return err
	}
	if err := codec.WriteRequest(conn, req); err != nil {
		return types.NewError(types.KindSocketIO, op, err)
	}

	for {
		frame, err := codec.ReadFrame(conn)
		if err != nil {
			return types.NewError(types.KindSocketIO, op, err)
		}
		switch frame.Kind {
		case codec.KindEvent:
			if onEvent != nil && frame.Event != nil {
				onEvent(*frame.Event)
			}
		case codec.KindResponse:
			return decodeResponse(frame.Response, out)
		default:
			return types.NewError(types.KindDecodeFailure, op+": unexpected frame kind", nil)
		}
	}
}

func buildRequest(op string, args interface{}) (*codec.Request, error) {
	if args == nil {
		return &codec.Request{Op: op}, nil
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, types.NewError(types.KindDecodeFailure, op+": encoding args", err)
	}
	return &codec.Request{Op: op, Args: body}, nil
}

func decodeResponse(resp *codec.Response, out interface{}) error {
	if resp.Status != "ok" {
		kind := types.Kind(resp.Kind)
		if kind == "" {
			kind = types.KindSocketIO
		}
		return types.NewError(kind, resp.Message, nil)
	}
	if out == nil || len(resp.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return types.NewError(types.KindDecodeFailure, "decoding response payload", err)
	}
	return nil
}

// Create materialises a template into a fresh instance directory without
// spawning a worker.
func (c *Client) Create(ctx context.Context, templateName, customName string) (control.CreateResult, error) {
	var out control.CreateResult
	err := c.call(ctx, codec.OpCreate, control.CreateArgs{TemplateName: templateName, CustomName: customName}, &out)
	return out, err
}

// Run materialises (unless instanceID reuses a prior Create) and spawns a
// worker, returning the resulting Instance.
func (c *Client) Run(ctx context.Context, templateName, customName, instanceID string) (types.Instance, error) {
	var out types.Instance
	err := c.call(ctx, codec.OpRun, control.RunArgs{
		TemplateName: templateName,
		CustomName:   customName,
		InstanceID:   instanceID,
	}, &out)
	return out, err
}

// PS lists every live instance.
func (c *Client) PS(ctx context.Context) ([]types.Instance, error) {
	var out control.PSResult
	err := c.call(ctx, codec.OpPS, nil, &out)
	return out.Instances, err
}

// Inspect resolves agent (an instance ID, custom name, or template name)
// and returns its current Instance.
func (c *Client) Inspect(ctx context.Context, agent string) (types.Instance, error) {
	var out types.Instance
	err := c.call(ctx, codec.OpInspect, control.InspectArgs{Agent: agent}, &out)
	return out, err
}

// Send enqueues a message for delivery to agent, returning its message ID.
func (c *Client) Send(ctx context.Context, from, to, payload string, kind types.MessageKind) (uint64, error) {
	var out control.SendResult
	err := c.call(ctx, codec.OpSend, control.SendArgs{From: from, To: to, Payload: payload, Kind: kind}, &out)
	return out.MessageID, err
}

// Stop stops one agent, or every running instance when all is true.
func (c *Client) Stop(ctx context.Context, agent string, all bool) error {
	return c.call(ctx, codec.OpStop, control.StopArgs{Agent: agent, All: all}, nil)
}

// Queues reports current per-instance queue stats.
func (c *Client) Queues(ctx context.Context) ([]types.QueueStats, error) {
	var out control.QueuesResult
	err := c.call(ctx, codec.OpQueues, control.QueuesArgs{Follow: false}, &out)
	return out.Queues, err
}

// QueuesFollow streams periodic queue-stats snapshots to onUpdate until
// ctx is cancelled or the daemon closes the connection.
func (c *Client) QueuesFollow(ctx context.Context, onUpdate func([]types.QueueStats)) error {
	return c.streamCall(ctx, codec.OpQueues, control.QueuesArgs{Follow: true}, nil, func(ev codec.Event) {
		if onUpdate == nil || ev.EventKind != codec.EventQueueStats {
			return
		}
		var result control.QueuesResult
		if err := json.Unmarshal(ev.Payload, &result); err == nil {
			onUpdate(result.Queues)
		}
	})
}

// Templates lists every template visible across all discovery layers.
func (c *Client) Templates(ctx context.Context) ([]types.TemplateSummary, error) {
	var out control.TemplatesResult
	err := c.call(ctx, codec.OpTemplates, nil, &out)
	return out.Templates, err
}

// Pull fetches templateName from a configured remote registry and writes
// it into the Pulled layer.
func (c *Client) Pull(ctx context.Context, registryName, templateName string) (control.PullResult, error) {
	var out control.PullResult
	err := c.call(ctx, codec.OpPull, control.PullArgs{Registry: registryName, Template: templateName}, &out)
	return out, err
}

// ConfigGet reads one scalar config value by dotted key.
func (c *Client) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	var out control.ConfigResult
	err := c.call(ctx, codec.OpConfig, control.ConfigArgs{Action: "get", Key: key}, &out)
	return out.Value, out.Found, err
}

// ConfigSet writes key=value into the local config document.
func (c *Client) ConfigSet(ctx context.Context, key, value string) error {
	return c.call(ctx, codec.OpConfig, control.ConfigArgs{Action: "set", Key: key, Value: value}, nil)
}

// ConfigShow returns every merged config key that ConfigGet can read
// (default_model, registries.<name>.url/.kind, and each extra key) with
// its value. The template resolution order is not included.
func (c *Client) ConfigShow(ctx context.Context) (map[string]string, error) {
	var out control.ConfigResult
	err := c.call(ctx, codec.OpConfig, control.ConfigArgs{Action: "show"}, &out)
	return out.Show, err
}

// Chat sends message to agent and streams back whatever Events the
// worker emits for the turn, returning once the terminal turn-complete
// or turn-truncated Response arrives.
func (c *Client) Chat(ctx context.Context, agent, message string, onEvent func(codec.Event)) error {
	return c.streamCall(ctx, codec.OpChat, control.ChatArgs{Agent: agent, Message: message}, nil, onEvent)
}

// Logs streams agent's log, optionally following new lines until ctx is
// cancelled or the daemon closes the connection.
func (c *Client) Logs(ctx context.Context, agent string, follow bool, onLine func(string)) error {
	return c.streamCall(ctx, codec.OpLogs, control.LogsArgs{Agent: agent, Follow: follow}, nil, func(ev codec.Event) {
		if onLine == nil || ev.EventKind != codec.EventLogEntry {
			return
		}
		var line struct {
			Line string `json:"line"`
		}
		if err := json.Unmarshal(ev.Payload, &line); err == nil {
			onLine(line.Line)
		}
	})
}

// Shutdown asks the daemon to gracefully tear itself down.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, codec.OpShutdown, nil, nil)
}
