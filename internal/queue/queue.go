package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/redis"
)

// Message is a single queued delivery pulled from the stream. Attempts counts
// how many times a consumer has claimed it, including reclaims of entries that
// sat past the visibility timeout.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
}

// MessageHandler processes one message. A nil return acknowledges the entry;
// an error leaves it pending so it is reclaimed and retried.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

func (c *QueueConfig) applyDefaults() {
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "default-group"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
}

// Queue is a redis-streams backed work queue with a single consumer group.
// Entries that stay pending longer than the visibility timeout are claimed
// back and retried; entries that exhaust MaxRetries go to the dead letter
// stream when EnableDLQ is set.
type Queue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	ProcessedCount  int64
	FailedCount     int64
	ConsumerCount   int64
}

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP from a previous run is expected here.
	_ = q.adapter.XGroupCreateMkStream(config.Name, config.ConsumerGroup, "0")

	return q, nil
}

// Publish appends a raw payload to the stream.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", q.config.Name, err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}
	return id, nil
}

// PublishJSON marshals data and appends it to the stream.
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal queue payload: %w", err)
	}
	return q.Publish(ctx, payload, metadata)
}

// Consume starts the polling loop in a background goroutine. Handler errors
// leave the entry pending for a later reclaim.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}
	q.handler = handler

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(q.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.ctx.Done():
				return
			case <-ticker.C:
				q.readNew()
				q.reclaimStale()
			}
		}
	}()
	return nil
}

func (q *Queue) readNew() {
	entries, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}
	for _, entry := range entries {
		q.dispatch(q.decode(entry))
	}
}

// reclaimStale takes over entries another consumer claimed but never acked.
func (q *Queue) reclaimStale() {
	summary, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || summary == nil || summary.Count == 0 {
		return
	}

	pending, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil {
		return
	}

	var stale []string
	for _, p := range pending {
		if p.Idle >= q.config.VisibilityTimeout {
			stale = append(stale, p.ID)
		}
	}
	if len(stale) == 0 {
		return
	}

	claimed, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		stale...,
	)
	if err != nil {
		return
	}

	for _, entry := range claimed {
		msg := q.decode(entry)
		msg.Attempts++
		q.dispatch(msg)
	}
}

func (q *Queue) dispatch(msg *Message) {
	if msg.Attempts >= q.config.MaxRetries {
		q.deadLetter(msg)
		q.ack(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		// Not acked: stays pending until reclaimStale picks it up.
		return
	}
	q.ack(msg.ID)
}

func (q *Queue) ack(id string) {
	if err := q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, id); err != nil {
		logger.Error("queue ack failed", "queue", q.config.Name, "id", id, "error", err)
	}
}

func (q *Queue) deadLetter(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}
	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}
	if _, err := q.adapter.XAdd(q.config.Name+":dlq", values); err != nil {
		logger.Error("dead letter publish failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) decode(entry redis.StreamMessage) *Message {
	msg := &Message{
		ID:       entry.ID,
		Metadata: make(map[string]string),
	}
	for k, v := range entry.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == "data":
			msg.Data = []byte(s)
		case k == "timestamp":
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				msg.Timestamp = time.Unix(unix, 0)
			}
		case k == "attempts":
			msg.Attempts, _ = strconv.Atoi(s)
		case strings.HasPrefix(k, "meta_"):
			msg.Metadata[strings.TrimPrefix(k, "meta_")] = s
		}
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

// Stop cancels consumption and waits up to timeout for in-flight handlers.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*QueueStats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{TotalMessages: total}
	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	return stats, nil
}
