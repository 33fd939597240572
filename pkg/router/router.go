package router

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/log"
	"github.com/corvid-labs/ago/pkg/types"
)

// DefaultQueueCapacity is the bounded inbound-queue depth per instance
// (SPEC_FULL.md §4.7).
const DefaultQueueCapacity = 1024

const (
	backoffBase = 100 * time.Millisecond
	backoffCap  = 2 * time.Second
	maxAttempts = 5
	dialTimeout = 2 * time.Second
)

// Locator resolves an instance ID to the Unix socket its worker listens
// on. The router never resolves friendly names itself — that's pkg/identity,
// consulted upstream by the control server before Send is called.
type Locator interface {
	SocketPath(instanceID string) (string, bool)
}

// DeadLetterSink receives messages whose delivery retries were exhausted.
type DeadLetterSink interface {
	AppendDeadLetter(types.DeadLetter) error
}

// Router queues and delivers messages between the control server and
// instances, and between instances. See SPEC_FULL.md §4.7.
type Router struct {
	locator    Locator
	deadLetter DeadLetterSink
	logger     zerolog.Logger

	mu      sync.Mutex
	queues  map[string]*instanceQueue
	nextID  atomic.Uint64
	dialer  func(ctx context.Context, socketPath string) (net.Conn, error)
}

type instanceQueue struct {
	mu           sync.Mutex
	pending      int
	delivered    uint64
	deadLettered uint64
}

// New creates a Router. locator and deadLetter must be non-nil.
func New(locator Locator, deadLetter DeadLetterSink) *Router {
	return &Router{
		locator:    locator,
		deadLetter: deadLetter,
		logger:     log.WithComponent("router"),
		queues:     make(map[string]*instanceQueue),
		dialer:     dialUnix,
	}
}

func dialUnix(ctx context.Context, socketPath string) (net.Conn, error) {
	d := net.Dialer{}
	return d.DialContext(ctx, "unix", socketPath)
}

func (r *Router) queueFor(instanceID string) *instanceQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[instanceID]
	if !ok {
		q = &instanceQueue{}
		r.queues[instanceID] = q
	}
	return q
}

// Send resolves to, enqueues payload on its bounded inbound queue, and
// returns immediately — delivery happens on a background task. If from
// names a live instance (not "client"), the sender's own conversation log
// is asked to mirror the send as an outgoing record.
func (r *Router) Send(from, to, payload string, kind types.MessageKind) (uint64, error) {
	socketPath, ok := r.locator.SocketPath(to)
	if !ok {
		return 0, types.NewError(types.KindNoSuchAgent, to, nil)
	}

	q := r.queueFor(to)
	q.mu.Lock()
	if q.pending >= DefaultQueueCapacity {
		q.mu.Unlock()
		return 0, types.NewError(types.KindQueueFull, to, nil)
	}
	q.pending++
	q.mu.Unlock()

	msg := types.Message{
		ID:          r.nextID.Add(1),
		Origin:      from,
		Destination: to,
		Payload:     payload,
		Timestamp:   time.Now(),
		Kind:        kind,
	}

	go r.deliver(q, socketPath, msg)

	if from != "client" {
		go r.recordOutgoing(from, msg)
	}

	return msg.ID, nil
}

func (r *Router) deliver(q *instanceQueue, socketPath string, msg types.Message) {
	defer func() {
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
	}()

	backoff := backoffBase
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := r.deliverOnce(socketPath, msg); err != nil {
			lastErr = err
			r.logger.Warn().Err(err).Str("to", msg.Destination).Int("attempt", attempt).Msg("delivery attempt failed")
			time.Sleep(backoff)
			backoff *= 2
			if backoff > backoffCap {
				backoff = backoffCap
			}
			continue
		}
		q.mu.Lock()
		q.delivered++
		q.mu.Unlock()
		return
	}

	q.mu.Lock()
	q.deadLettered++
	q.mu.Unlock()

	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	if err := r.deadLetter.AppendDeadLetter(types.DeadLetter{
		MessageID:   msg.ID,
		Origin:      msg.Origin,
		Destination: msg.Destination,
		Payload:     msg.Payload,
		Timestamp:   msg.Timestamp,
		Attempts:    maxAttempts,
		LastError:   errMsg,
	}); err != nil {
		r.logger.Error().Err(err).Uint64("message_id", msg.ID).Msg("failed to record dead letter")
	}
}

func (r *Router) deliverOnce(socketPath string, msg types.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := r.dialer(ctx, socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(dialTimeout))

	args, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := codec.WriteRequest(conn, &codec.Request{Op: codec.WorkerOpDeliver, Args: args}); err != nil {
		return err
	}
	frame, err := codec.ReadFrame(conn)
	if err != nil {
		return err
	}
	if frame.Response == nil || frame.Response.Status != "ok" {
		return types.NewError(types.KindSocketIO, "worker rejected delivery", nil)
	}
	return nil
}

// recordOutgoing tells the sending instance's own worker to append an
// outgoing record to its conversation log, per SPEC_FULL.md §4.7 item 4.
// Best-effort: a failure here never blocks or fails the Send call and is
// never retried or dead-lettered — it is a log mirror, not a delivery.
func (r *Router) recordOutgoing(from string, msg types.Message) {
	socketPath, ok := r.locator.SocketPath(from)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := r.dialer(ctx, socketPath)
	if err != nil {
		r.logger.Debug().Err(err).Str("from", from).Msg("could not mirror outgoing message")
		return
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(dialTimeout))

	args, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = codec.WriteRequest(conn, &codec.Request{Op: codec.WorkerOpRecordOutgoing, Args: args})
	_, _ = codec.ReadFrame(conn)
}

// Queues reports per-instance queue depth and delivery counters for the
// `queues` control operation.
func (r *Router) Queues() []types.QueueStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]types.QueueStats, 0, len(r.queues))
	for id, q := range r.queues {
		q.mu.Lock()
		stats = append(stats, types.QueueStats{
			InstanceID:   id,
			Depth:        q.pending,
			Delivered:    q.delivered,
			DeadLettered: q.deadLettered,
		})
		q.mu.Unlock()
	}
	return stats
}
