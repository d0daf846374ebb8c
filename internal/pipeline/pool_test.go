package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai4fin/invoice-scanner/internal/extraction"
	"github.com/ai4fin/invoice-scanner/internal/results"
)

// mockExtractor is a mock implementation of extraction.Extractor whose
// behavior is keyed off the single image byte the test jobs carry.
type mockExtractor struct {
	extract func(ctx context.Context, image []byte) (*extraction.InvoiceData, error)
}

func (m *mockExtractor) ExtractInvoice(ctx context.Context, image []byte, contentType string) (*extraction.InvoiceData, error) {
	return m.extract(ctx, image)
}

func (m *mockExtractor) Close() error { return nil }

// mockSink is a mock implementation of results.Sink
type mockSink struct {
	mu      sync.Mutex
	results []*results.Result
}

func (m *mockSink) Append(r *results.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func (m *mockSink) byJobID(id uint64) *results.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.JobID == id {
			return r
		}
	}
	return nil
}

// panicOnceSink is a mock implementation of results.Sink that panics on its
// first Append and delegates afterwards, recording every attempted job id.
type panicOnceSink struct {
	mu       sync.Mutex
	inner    *mockSink
	attempts []uint64
	panicked bool
}

func (s *panicOnceSink) Append(r *results.Result) error {
	s.mu.Lock()
	s.attempts = append(s.attempts, r.JobID)
	first := !s.panicked
	s.panicked = true
	s.mu.Unlock()
	if first {
		panic("workbook corrupted")
	}
	return s.inner.Append(r)
}

func (s *panicOnceSink) attemptedJobs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.attempts...)
}

var invoice = &extraction.InvoiceData{InvoiceNumber: "INV-001", Seller: "ACME", Amount: 12.5, Currency: "USD"}

var _ = Describe("Pool", func() {
	var (
		queue     *Queue
		extractor *mockExtractor
		sink      *mockSink
		stats     *Stats
		pool      *Pool
	)

	BeforeEach(func() {
		queue = NewQueue(8)
		extractor = &mockExtractor{
			extract: func(ctx context.Context, image []byte) (*extraction.InvoiceData, error) {
				return invoice, nil
			},
		}
		sink = &mockSink{}
		stats = NewStats()
	})

	startPool := func(workers int, timeout time.Duration) {
		pool = NewPool(queue, extractor, sink, stats, workers, timeout)
		pool.poll = 10 * time.Millisecond
		pool.Start()
	}

	AfterEach(func() {
		queue.Close()
		pool.Wait()
	})

	When("extraction succeeds", func() {
		It("appends one success result per job", func() {
			queue.Enqueue(job(1))
			queue.Enqueue(job(2))
			queue.Enqueue(job(3))
			startPool(2, time.Second)

			Eventually(sink.count, "2s").Should(Equal(3))
			for id := uint64(1); id <= 3; id++ {
				result := sink.byJobID(id)
				Expect(result).NotTo(BeNil())
				Expect(result.Status).To(Equal(results.StatusOK))
				Expect(result.Record.InvoiceNumber).To(Equal("INV-001"))
			}
			Expect(stats.Snapshot().ExtractionsOK).To(Equal(uint64(3)))
		})
	})

	When("extraction fails for one job", func() {
		It("records a failure and keeps processing later jobs", func() {
			extractor.extract = func(ctx context.Context, image []byte) (*extraction.InvoiceData, error) {
				if image[0] == 7 {
					return nil, errors.New("model rejected the image")
				}
				return invoice, nil
			}
			queue.Enqueue(job(7))
			queue.Enqueue(job(8))
			startPool(1, time.Second)

			Eventually(sink.count, "2s").Should(Equal(2))
			Expect(sink.byJobID(7).Status).To(Equal(results.StatusFailed))
			Expect(sink.byJobID(7).FailureReason).To(Equal("model rejected the image"))
			Expect(sink.byJobID(8).Status).To(Equal(results.StatusOK))
			Expect(stats.Snapshot().ExtractionsFailed).To(Equal(uint64(1)))
		})
	})

	When("the extractor panics", func() {
		It("converts the panic to a failure result and keeps the worker alive", func() {
			extractor.extract = func(ctx context.Context, image []byte) (*extraction.InvoiceData, error) {
				if image[0] == 1 {
					panic("decoder blew up")
				}
				return invoice, nil
			}
			queue.Enqueue(job(1))
			queue.Enqueue(job(2))
			startPool(1, time.Second)

			Eventually(sink.count, "2s").Should(Equal(2))
			Expect(sink.byJobID(1).Status).To(Equal(results.StatusFailed))
			Expect(sink.byJobID(1).FailureReason).To(ContainSubstring("extractor panic"))
			Expect(sink.byJobID(2).Status).To(Equal(results.StatusOK))
		})
	})

	When("the extractor returns no record and no error", func() {
		It("records a failure", func() {
			extractor.extract = func(ctx context.Context, image []byte) (*extraction.InvoiceData, error) {
				return nil, nil
			}
			queue.Enqueue(job(1))
			startPool(1, time.Second)

			Eventually(sink.count, "2s").Should(Equal(1))
			Expect(sink.byJobID(1).Status).To(Equal(results.StatusFailed))
			Expect(sink.byJobID(1).FailureReason).To(Equal("extractor returned no record"))
		})
	})

	When("the extractor exceeds the recognition deadline", func() {
		It("records a failure instead of hanging the worker", func() {
			extractor.extract = func(ctx context.Context, image []byte) (*extraction.InvoiceData, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			queue.Enqueue(job(1))
			startPool(1, 30*time.Millisecond)

			Eventually(sink.count, "2s").Should(Equal(1))
			result := sink.byJobID(1)
			Expect(result.Status).To(Equal(results.StatusFailed))
			Expect(result.FailureReason).To(ContainSubstring("deadline exceeded"))
		})
	})

	When("the sink panics on a result", func() {
		It("keeps the worker alive and attempts every later result", func() {
			boom := &panicOnceSink{inner: sink}
			queue.Enqueue(job(1))
			queue.Enqueue(job(2))
			pool = NewPool(queue, extractor, boom, stats, 1, time.Second)
			pool.poll = 10 * time.Millisecond
			pool.Start()

			// Job 2 lands in the inner sink, proving the single worker
			// survived the panic during job 1's hand-off.
			Eventually(sink.count, "2s").Should(Equal(1))
			Expect(sink.byJobID(2)).NotTo(BeNil())

			// Both jobs reached the sink; job 1's loss is contained and
			// logged, never a dead worker.
			Expect(boom.attemptedJobs()).To(Equal([]uint64{1, 2}))
		})
	})

	When("the queue closes with work still pending", func() {
		It("finishes the in-flight job and abandons the rest", func() {
			started := make(chan struct{})
			release := make(chan struct{})
			extractor.extract = func(ctx context.Context, image []byte) (*extraction.InvoiceData, error) {
				close(started)
				<-release
				return invoice, nil
			}
			queue.Enqueue(job(1))
			queue.Enqueue(job(2))
			queue.Enqueue(job(3))
			startPool(1, time.Second)

			// The single worker is now inside the extractor with job 1.
			Eventually(started, "2s").Should(BeClosed())

			abandoned := queue.Close()
			Expect(abandoned).To(Equal(2))

			close(release)
			pool.Wait()

			Expect(sink.count()).To(Equal(1))
			Expect(sink.byJobID(1).Status).To(Equal(results.StatusOK))
		})
	})
})
