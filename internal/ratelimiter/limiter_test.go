package ratelimiter_test

import (
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stavrosp/flowguard/internal/ratelimiter"
)

var _ = Describe("RateLimiter", func() {
	var rl *ratelimiter.RateLimiter

	newLimiter := func(maxRequests int, window time.Duration) *ratelimiter.RateLimiter {
		limiter, err := ratelimiter.New(ratelimiter.Config{
			MaxRequests: maxRequests,
			Window:      window,
		})
		Expect(err).NotTo(HaveOccurred())
		return limiter
	}

	Describe("New", func() {
		It("should reject zero max requests", func() {
			_, err := ratelimiter.New(ratelimiter.Config{MaxRequests: 0, Window: time.Second})
			Expect(err).To(HaveOccurred())
		})

		It("should reject a zero window", func() {
			_, err := ratelimiter.New(ratelimiter.Config{MaxRequests: 10, Window: 0})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Allow", func() {
		BeforeEach(func() {
			rl = newLimiter(3, time.Second)
		})

		It("should admit requests under the limit", func() {
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
		})

		It("should reject the request over the limit", func() {
			for i := 0; i < 3; i++ {
				Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			}
			Expect(rl.Allow("10.0.0.1")).To(BeFalse())
		})

		It("should track clients independently", func() {
			for i := 0; i < 3; i++ {
				Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			}
			Expect(rl.Allow("10.0.0.1")).To(BeFalse())
			Expect(rl.Allow("10.0.0.2")).To(BeTrue())
		})

		It("should admit again after the window elapses", func() {
			rl = newLimiter(2, 100*time.Millisecond)

			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			Expect(rl.Allow("10.0.0.1")).To(BeFalse())

			time.Sleep(120 * time.Millisecond)
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
		})

		It("should not count rejected attempts against the client", func() {
			rl = newLimiter(2, 150*time.Millisecond)

			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())

			// Hammering while limited must not extend the penalty.
			for i := 0; i < 10; i++ {
				Expect(rl.Allow("10.0.0.1")).To(BeFalse())
			}

			time.Sleep(170 * time.Millisecond)
			Expect(rl.Allow("10.0.0.1")).To(BeTrue())
		})
	})

	Describe("RetryAfter", func() {
		BeforeEach(func() {
			rl = newLimiter(2, time.Second)
		})

		It("should be zero for an unknown client", func() {
			Expect(rl.RetryAfter("10.0.0.1")).To(BeZero())
		})

		It("should be zero while under the limit", func() {
			rl.Allow("10.0.0.1")
			Expect(rl.RetryAfter("10.0.0.1")).To(BeZero())
		})

		It("should be positive and at most the window when limited", func() {
			rl.Allow("10.0.0.1")
			rl.Allow("10.0.0.1")
			Expect(rl.Allow("10.0.0.1")).To(BeFalse())

			wait := rl.RetryAfter("10.0.0.1")
			Expect(wait).To(BeNumerically(">", 0))
			Expect(wait).To(BeNumerically("<=", time.Second))
		})

		It("should shrink as the oldest entry ages out", func() {
			rl = newLimiter(1, 500*time.Millisecond)
			rl.Allow("10.0.0.1")

			first := rl.RetryAfter("10.0.0.1")
			time.Sleep(50 * time.Millisecond)
			second := rl.RetryAfter("10.0.0.1")
			Expect(second).To(BeNumerically("<", first))
		})
	})

	Describe("Burst scenario", func() {
		It("should admit a full window of requests and reject the next", func() {
			rl = newLimiter(60, time.Minute)

			for i := 0; i < 60; i++ {
				Expect(rl.Allow("203.0.113.7")).To(BeTrue(), fmt.Sprintf("request %d", i+1))
			}
			Expect(rl.Allow("203.0.113.7")).To(BeFalse())

			wait := rl.RetryAfter("203.0.113.7")
			Expect(wait).To(BeNumerically(">", 0))
			Expect(wait).To(BeNumerically("<=", time.Minute))
		})
	})

	Describe("Stats", func() {
		It("should count active clients and tracked requests", func() {
			rl = newLimiter(10, time.Second)

			rl.Allow("10.0.0.1")
			rl.Allow("10.0.0.1")
			rl.Allow("10.0.0.2")

			stats := rl.Stats()
			Expect(stats.ActiveClients).To(Equal(2))
			Expect(stats.TrackedRequests).To(Equal(3))
		})

		It("should drop clients whose window emptied", func() {
			rl = newLimiter(10, 50*time.Millisecond)

			rl.Allow("10.0.0.1")
			time.Sleep(70 * time.Millisecond)

			// Pruning is lazy, so touch the client again.
			rl.RetryAfter("10.0.0.1")
			Expect(rl.Stats().ActiveClients).To(BeZero())
		})
	})

	Describe("Concurrent access", func() {
		It("should never admit more than the limit within one window", func() {
			rl = newLimiter(50, time.Minute)

			var wg sync.WaitGroup
			var allowed int64
			var mu sync.Mutex

			wg.Add(100)
			for i := 0; i < 100; i++ {
				go func() {
					defer wg.Done()
					if rl.Allow("10.0.0.1") {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Expect(allowed).To(Equal(int64(50)))
		})
	})
})
