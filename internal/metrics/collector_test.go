package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stavrosp/flowguard/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("Event processing", func() {
		It("should count allowed requests", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventRequestAllowed,
				Timestamp: time.Now(),
				ClientKey: "10.0.0.1",
			})

			Eventually(func() int64 {
				return collector.Snapshot().Requests.Allowed
			}).Should(Equal(int64(1)))
		})

		It("should count limited requests per client", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventRequestLimited,
				Timestamp: time.Now(),
				ClientKey: "10.0.0.1",
			})
			collector.Emit(metrics.Event{
				Type:      metrics.EventRequestLimited,
				Timestamp: time.Now(),
				ClientKey: "10.0.0.1",
			})

			Eventually(func() int64 {
				return collector.Snapshot().Requests.Limited
			}).Should(Equal(int64(2)))
			Expect(collector.Snapshot().Requests.LimitedByClient["10.0.0.1"]).To(Equal(int64(2)))
		})

		It("should record dependency calls with latency", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:       metrics.EventCallCompleted,
				Timestamp:  time.Now(),
				Dependency: "vector_store",
				Duration:   100 * time.Millisecond,
			})

			Eventually(func() int64 {
				return collector.Snapshot().Dependencies["vector_store"].Calls
			}).Should(Equal(int64(1)))

			dep := collector.Snapshot().Dependencies["vector_store"]
			Expect(dep.Failures).To(BeZero())
			Expect(dep.AvgLatency).To(Equal(100 * time.Millisecond))
		})

		It("should count failed calls", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:       metrics.EventCallCompleted,
				Timestamp:  time.Now(),
				Dependency: "relational_store",
				Duration:   5 * time.Millisecond,
				Failed:     true,
			})

			Eventually(func() int64 {
				return collector.Snapshot().Dependencies["relational_store"].Failures
			}).Should(Equal(int64(1)))
		})

		It("should count breaker rejections", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:       metrics.EventCallRejected,
				Timestamp:  time.Now(),
				Dependency: "vector_store",
			})

			Eventually(func() int64 {
				return collector.Snapshot().Dependencies["vector_store"].Rejections
			}).Should(Equal(int64(1)))
		})

		It("should count backpressure transitions", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventBackpressureChanged,
				Timestamp: time.Now(),
				Paused:    true,
			})

			Eventually(func() metrics.BackpressureMetrics {
				return collector.Snapshot().Backpressure
			}).Should(Equal(metrics.BackpressureMetrics{Transitions: 1, Paused: true}))
		})

		It("should drain pending events on context cancellation", func() {
			collector.Start(ctx)

			for i := 0; i < 10; i++ {
				collector.Emit(metrics.Event{
					Type:       metrics.EventCallCompleted,
					Timestamp:  time.Now(),
					Dependency: "vector_store",
					Duration:   time.Millisecond,
				})
			}
			cancel()

			Eventually(func() int64 {
				return collector.Snapshot().Dependencies["vector_store"].Calls
			}).Should(Equal(int64(10)))
		})
	})

	Describe("Emit", func() {
		It("should not block when the buffer is full", func() {
			// Collector never started, so nothing consumes the channel.
			small := metrics.NewCollector(1, log)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 100; i++ {
					small.Emit(metrics.Event{Type: metrics.EventRequestAllowed})
				}
			}()

			Eventually(done).Should(BeClosed())
		})
	})

	Describe("Handler", func() {
		It("should serve a JSON snapshot", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:       metrics.EventCallCompleted,
				Timestamp:  time.Now(),
				Dependency: "vector_store",
				Duration:   50 * time.Millisecond,
			})
			Eventually(func() int64 {
				return collector.Snapshot().Dependencies["vector_store"].Calls
			}).Should(Equal(int64(1)))

			req := httptest.NewRequest("GET", "/metrics", nil)
			w := httptest.NewRecorder()
			collector.Handler()(w, req)

			Expect(w.Code).To(Equal(200))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(w.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Dependencies["vector_store"].Calls).To(Equal(int64(1)))
		})
	})
})
