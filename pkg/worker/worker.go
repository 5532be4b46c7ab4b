package worker

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fieldserve/comms-gateway/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs out over a fixed goroutine pool. Enqueue publishes
// onto the shared job channel; Start blocks until all workers have exited.
// The job channel is never closed on shutdown since it may be owned by the
// caller; workers stop through the signal channel instead.
type WorkerManager struct {
	bufferSize int
	jobs       chan interface{}
	poolSize   int
	stop       chan os.Signal
	do         WorkerHandler
	waiter     sync.WaitGroup
}

// NewWorkerManager builds a pool of poolSize workers. Pass a nil jobChannel
// to let the manager allocate its own buffered channel.
func NewWorkerManager(bufferSize, poolSize int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}

	// One buffered slot per worker so Exit never drops a stop signal, and
	// SIGTERM is forwarded to the same channel for process shutdown.
	stop := make(chan os.Signal, poolSize)
	signal.Notify(stop, syscall.SIGTERM)

	return &WorkerManager{
		bufferSize: bufferSize,
		poolSize:   poolSize,
		jobs:       jobChannel,
		stop:       stop,
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	if w.jobs == nil {
		return 0
	}
	return int64(len(w.jobs))
}

func (w *WorkerManager) JobEvents() chan interface{} {
	return w.jobs
}

func (w *WorkerManager) SetWorker(handler WorkerHandler) {
	w.do = handler
}

func (w *WorkerManager) Enqueue(job interface{}) {
	w.jobs <- job
}

// Start runs the pool and blocks until every worker has received a stop
// signal. It always returns a non-nil error so callers log the termination.
func (w *WorkerManager) Start() error {
	w.waiter.Add(w.poolSize)
	for i := 0; i < w.poolSize; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobs:
					w.do(index, job)
				case <-w.stop:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()
	return errors.New("workers terminated")
}

// Exit stops every worker. Jobs still buffered on the channel are left there.
func (w *WorkerManager) Exit() {
	logger.Info("worker manager shutting down")
	for i := 0; i < w.poolSize; i++ {
		w.stop <- syscall.SIGTERM
	}
}
