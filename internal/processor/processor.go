package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldserve/comms-gateway/internal/config"
	"github.com/fieldserve/comms-gateway/internal/queue"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/redis"
	"github.com/fieldserve/comms-gateway/pkg/worker"
)

const (
	ProcessingTimeout = 5 * time.Second
	HealthInterval    = 30 * time.Second
	ShutdownTimeout   = time.Minute

	consumerInstances = 10
	workerPoolSize    = 100
	pendingAlertLevel = 10_000
)

// Processor handles a single queued delivery.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// ProcessorService drains the outbound delivery queue. It runs several
// consumer instances against the same consumer group and fans handler work
// out to a shared worker pool, so one slow provider call never stalls the
// polling loops.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewProcessorService(adapter redis.RedisAdapter) (*ProcessorService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: adapter,
		queues:  make([]*queue.Queue, 0, consumerInstances),
		metrics: NewServiceMetrics(),
		worker:  worker.NewWorkerManager(10_000, workerPoolSize, nil),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (s *ProcessorService) RegisterProcessor(p Processor) {
	s.processor = p
	logger.Info("registered processor", "type", p.GetType())
}

// Start brings up the worker pool, the consumer instances and the periodic
// reporters. It returns once everything is running.
func (s *ProcessorService) Start() error {
	logger.Info("starting delivery processor")

	s.worker.SetWorker(s.runJob)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < consumerInstances; i++ {
		cfg := queue.QueueConfig{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", config.Get().QueueConsumerName, i),
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		}

		q, err := queue.NewQueue(s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(s.enqueueJob); err != nil {
			return fmt.Errorf("start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.reportLoop()
	go s.healthLoop()

	logger.Info("delivery processor started", "consumers", len(s.queues), "workers", workerPoolSize)
	return nil
}

func (s *ProcessorService) reportLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("delivery metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qs, err := q.GetStats(); err == nil {
			logger.Info("queue depth", "consumer", i, "total", qs.TotalMessages, "pending", qs.PendingMessages)
		}
	}
}

func (s *ProcessorService) healthLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkHealth()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) checkHealth() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "consumer", i, "error", err)
			continue
		}
		if stats.PendingMessages > pendingAlertLevel {
			logger.Warn("health check: delivery backlog is high", "consumer", i, "pending", stats.PendingMessages)
		}
	}
}

// Stop drains the consumers, shuts the worker pool down and logs the final
// counters.
func (s *ProcessorService) Stop() {
	logger.Info("stopping delivery processor")
	s.cancel()

	stopped := make(chan struct{}, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("consumer stop failed", "consumer", index, "error", err)
			}
			stopped <- struct{}{}
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopped:
		case <-time.After(ShutdownTimeout + 5*time.Second):
			logger.Warn("timeout waiting for consumers to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()
	logger.Info("delivery processor stopped")
}

type deliveryJob struct {
	msg    *queue.Message
	result chan error
	ctx    context.Context
}

// enqueueJob hands the delivery to the worker pool and blocks the consumer
// until a worker reports back, so the queue entry is only acked once the
// provider call has actually finished.
func (s *ProcessorService) enqueueJob(ctx context.Context, msg *queue.Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &deliveryJob{
		msg:    msg,
		result: make(chan error, 1),
		ctx:    jobCtx,
	}
	s.worker.Enqueue(job)

	select {
	case err := <-job.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for delivery worker: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) runJob(workerIndex int, raw interface{}) {
	job, ok := raw.(*deliveryJob)
	if !ok {
		logger.Error("unexpected job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-job.ctx.Done():
		logger.Warn("delivery cancelled before processing", "worker", workerIndex)
		return
	default:
	}

	var resultErr error
	start := time.Now()

	switch {
	case s.processor == nil:
		// Ack anyway: with no processor registered a retry cannot succeed.
		logger.Warn("no processor registered, dropping delivery", "worker", workerIndex)
		s.metrics.RecordFailure()
	default:
		if err := s.processor.Process(job.ctx, job.msg); err != nil {
			s.metrics.RecordFailure()
			logger.Error("delivery processing failed", "worker", workerIndex, "error", err)
			resultErr = err
		} else {
			s.metrics.RecordSuccess(time.Since(start))
		}
	}

	// The consumer may already have timed out and walked away, so never
	// block on the result channel.
	select {
	case job.result <- resultErr:
	case <-job.ctx.Done():
		logger.Warn("consumer gave up before the delivery finished", "worker", workerIndex)
	}
}
