package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ai4fin/invoice-scanner/internal/capture"
	"github.com/ai4fin/invoice-scanner/internal/extraction"
	"github.com/ai4fin/invoice-scanner/internal/results"
)

// defaultPollInterval is how long an idle worker waits on the queue before
// re-checking for shutdown.
const defaultPollInterval = 500 * time.Millisecond

// Pool runs a fixed set of recognition workers. Each worker loops
// dequeue → extract → append result; failures are contained per job, and a
// worker that dies unexpectedly is replaced so the pool always holds its
// configured size while running.
type Pool struct {
	queue     *Queue
	extractor extraction.Extractor
	sink      results.Sink
	stats     *Stats

	workers int
	timeout time.Duration
	poll    time.Duration

	wg sync.WaitGroup
}

// NewPool creates a pool of workers recognition-bound by timeout. Call
// Start to launch it.
func NewPool(queue *Queue, extractor extraction.Extractor, sink results.Sink, stats *Stats, workers int, timeout time.Duration) *Pool {
	return &Pool{
		queue:     queue,
		extractor: extractor,
		sink:      sink,
		stats:     stats,
		workers:   workers,
		timeout:   timeout,
		poll:      defaultPollInterval,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	slog.Info("worker pool started", "workers", p.workers, "recognition_timeout", p.timeout)
}

// Wait blocks until every worker has exited. Workers exit only after the
// queue is closed and their in-flight job, if any, has completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	defer func() {
		// A panic escaping the per-job guard means the worker itself is
		// broken mid-loop; replace it to keep the pool at full size.
		if r := recover(); r != nil {
			slog.Error("worker crashed, restarting", "worker_id", id, "panic", r)
			if !p.queue.Closed() {
				p.wg.Add(1)
				go p.worker(id)
			}
		}
	}()

	slog.Info("worker started", "worker_id", id)
	for {
		job, ok := p.queue.Dequeue(p.poll)
		if !ok {
			if p.queue.Closed() {
				slog.Info("worker stopped", "worker_id", id)
				return
			}
			continue
		}
		p.process(id, job)
	}
}

// process turns one job into exactly one result and hands it to the sink.
func (p *Pool) process(workerID int, job *capture.Job) {
	start := time.Now()
	result := p.recognize(job)

	if result.Status == results.StatusOK {
		p.stats.ExtractionOK()
		slog.Info("job processed",
			"worker_id", workerID,
			"job_id", job.ID,
			"invoice_number", result.Record.InvoiceNumber,
			"elapsed", time.Since(start),
		)
	} else {
		p.stats.ExtractionFailed()
		slog.Error("job failed",
			"worker_id", workerID,
			"job_id", job.ID,
			"reason", result.FailureReason,
			"elapsed", time.Since(start),
		)
	}

	if err := p.appendResult(result); err != nil {
		slog.Error("appending result failed", "worker_id", workerID, "job_id", job.ID, "error", err)
	}
}

// appendResult hands one result to the sink. A panicking sink is contained
// here so the worker survives and the job id of the lost result reaches the
// log, rather than the job vanishing with the worker.
func (p *Pool) appendResult(result *results.Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return p.sink.Append(result)
}

// recognize invokes the extractor under the recognition deadline,
// converting every failure mode (error return, timeout, panic) into a
// Failure result rather than a dead worker.
func (p *Pool) recognize(job *capture.Job) (result *results.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = results.NewFailure(job, fmt.Sprintf("extractor panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	record, err := p.extractor.ExtractInvoice(ctx, job.Image, job.ContentType)
	if err != nil {
		return results.NewFailure(job, err.Error())
	}
	if record == nil {
		return results.NewFailure(job, "extractor returned no record")
	}
	return results.NewSuccess(job, record)
}
