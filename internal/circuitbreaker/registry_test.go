package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stavrosp/flowguard/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		var err error
		registry, err = circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRegistry", func() {
		It("should reject an invalid default configuration", func() {
			_, err := circuitbreaker.NewRegistry(circuitbreaker.Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("should create a new breaker for an unknown name", func() {
			cb := registry.Get("vector_store")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same name", func() {
			cb1 := registry.Get("vector_store")
			cb2 := registry.Get("vector_store")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different names", func() {
			cb1 := registry.Get("vector_store")
			cb2 := registry.Get("relational_store")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should apply the registry defaults to new breakers", func() {
			registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
				FailureThreshold: 2,
				Timeout:          50 * time.Millisecond,
				SuccessThreshold: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			cb := registry.Get("vector_store")
			failingCall(cb)
			failingCall(cb)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			time.Sleep(60 * time.Millisecond)
			Expect(successfulCall(cb)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Stats", func() {
		It("should snapshot every registered breaker", func() {
			vec := registry.Get("vector_store")
			registry.Get("relational_store")
			failingCall(vec)

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["vector_store"].Failures).To(Equal(1))
			Expect(stats["relational_store"].State).To(Equal("CLOSED"))
		})

		It("should be empty before any breaker is created", func() {
			Expect(registry.Stats()).To(BeEmpty())
		})
	})

	Describe("Reset", func() {
		It("should discard all breakers", func() {
			registry.Get("vector_store")
			registry.Reset()
			Expect(registry.Stats()).To(BeEmpty())
		})
	})

	Describe("Concurrent access", func() {
		It("should hand out one breaker per name under concurrent first access", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)

			results := make([]*circuitbreaker.CircuitBreaker, goroutines)
			for i := 0; i < goroutines; i++ {
				go func(id int) {
					defer wg.Done()
					results[id] = registry.Get("vector_store")
				}(i)
			}
			wg.Wait()

			for _, cb := range results {
				Expect(cb).To(BeIdenticalTo(results[0]))
			}
		})

		It("should keep breaker bookkeeping consistent under concurrent calls", func() {
			cb := registry.Get("vector_store")

			var wg sync.WaitGroup
			wg.Add(50)
			for i := 0; i < 50; i++ {
				go func(id int) {
					defer wg.Done()
					if id%2 == 0 {
						successfulCall(cb)
					} else {
						failingCall(cb)
					}
				}(i)
			}
			wg.Wait()

			stats := cb.Stats()
			Expect(stats.State).To(BeElementOf("CLOSED", "OPEN"))
		})
	})
})
