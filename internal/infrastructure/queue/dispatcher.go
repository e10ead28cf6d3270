package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes task activity records to a fixed set of workers using
// consistent hashing on the task id, preserving per-task ordering.
type Dispatcher struct {
	workers []chan ports.TaskActivityInput
	service ports.ActivityService
	log     zerolog.Logger
	wg      sync.WaitGroup
}

var _ ports.ActivityPublisher = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.ActivityService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.TaskActivityInput, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.TaskActivityInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their queue and stop
// when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned, or ctx expires.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish hands a record to the worker responsible for its task. It never
// blocks: when that worker's buffer is full the record is dropped and counted.
func (d *Dispatcher) Publish(in ports.TaskActivityInput) {
	idx := d.shardIndex(in.TaskID)
	select {
	case d.workers[idx] <- in:
		metrics.ActivityQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.ActivityErrorsTotal.WithLabelValues("queue_full").Inc()
		d.log.Warn().
			Str("task_id", in.TaskID).
			Str("action", in.Action).
			Int("worker_id", idx).
			Msg("activity queue full, record dropped")
	}
}

// shardIndex maps a task id deterministically to a worker index.
func (d *Dispatcher) shardIndex(taskID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.TaskActivityInput) {
	defer d.wg.Done()
	depth := metrics.ActivityQueueDepth.WithLabelValues(strconv.Itoa(id))

	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case in := <-ch:
			depth.Dec()
			d.process(ctx, id, in)
		}
	}
}

// drain persists whatever is still buffered after shutdown began.
func (d *Dispatcher) drain(id int, ch <-chan ports.TaskActivityInput) {
	depth := metrics.ActivityQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case in := <-ch:
			depth.Dec()
			d.process(context.Background(), id, in)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, id int, in ports.TaskActivityInput) {
	if err := d.service.Process(ctx, in); err != nil {
		d.log.Error().Err(err).
			Str("task_id", in.TaskID).
			Str("action", in.Action).
			Int("worker_id", id).
			Msg("activity processing failed")
	}
}
