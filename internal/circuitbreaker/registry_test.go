package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var (
		defaults circuitbreaker.Config
		registry *circuitbreaker.Registry
	)

	BeforeEach(func() {
		defaults = circuitbreaker.Config{
			FailureThreshold:     3,
			RecoveryTimeout:      100 * time.Millisecond,
			HalfOpenMaxCalls:     1,
			MinimumCallsRequired: 0,
		}

		var err error
		registry, err = circuitbreaker.NewRegistry(defaults, nil, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRegistry", func() {
		It("should reject invalid defaults", func() {
			_, err := circuitbreaker.NewRegistry(circuitbreaker.Config{}, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Create", func() {
		It("should create a breaker under the given name", func() {
			cb, err := registry.Create("subgraph-users", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))

			got, ok := registry.Get("subgraph-users")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(cb))
		})

		It("should replace a prior entry under the same name", func() {
			first, err := registry.Create("subgraph-users", nil)
			Expect(err).NotTo(HaveOccurred())

			second, err := registry.Create("subgraph-users", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(BeIdenticalTo(first))

			got, _ := registry.Get("subgraph-users")
			Expect(got).To(BeIdenticalTo(second))
		})

		It("should apply override fields over the defaults", func() {
			threshold := 1
			cb, err := registry.Create("subgraph-orders", &circuitbreaker.ConfigOverrides{
				FailureThreshold: &threshold,
			})
			Expect(err).NotTo(HaveOccurred())

			_, execErr := cb.Execute(fail, nil)
			Expect(execErr).To(MatchError(errBoom))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should fail fast on an empty name", func() {
			_, err := registry.Create("", nil)
			Expect(err).To(MatchError(circuitbreaker.ErrNameRequired))
		})

		It("should fail fast on overrides producing an invalid config", func() {
			threshold := 0
			_, err := registry.Create("subgraph-users", &circuitbreaker.ConfigOverrides{
				FailureThreshold: &threshold,
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("should report absence without an error", func() {
			_, ok := registry.Get("unknown")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("AllStats", func() {
		It("should snapshot every registered breaker", func() {
			registry.Create("subgraph-users", nil)
			registry.Create("subgraph-orders", nil)

			stats := registry.AllStats()
			Expect(stats).To(HaveLen(2))
			Expect(stats).To(HaveKey("subgraph-users"))
			Expect(stats).To(HaveKey("subgraph-orders"))
			Expect(stats["subgraph-users"].State).To(Equal("CLOSED"))
		})
	})

	Describe("HealthStatus", func() {
		It("should be healthy with no registered breakers", func() {
			status := registry.HealthStatus()
			Expect(status.Healthy).To(BeTrue())
			Expect(status.TotalCircuits).To(BeZero())
			Expect(status.OpenCircuits).To(BeEmpty())
		})

		It("should be healthy while every breaker is closed", func() {
			registry.Create("subgraph-users", nil)
			registry.Create("subgraph-orders", nil)

			status := registry.HealthStatus()
			Expect(status.Healthy).To(BeTrue())
			Expect(status.TotalCircuits).To(Equal(2))
		})

		It("should report degraded when any breaker is open", func() {
			registry.Create("subgraph-users", nil)
			cb, _ := registry.Create("subgraph-orders", nil)

			for i := 0; i < 3; i++ {
				cb.Execute(fail, nil)
			}

			status := registry.HealthStatus()
			Expect(status.Healthy).To(BeFalse())
			Expect(status.OpenCircuits).To(Equal([]string{"subgraph-orders"}))
			Expect(status.Stats["subgraph-orders"].State).To(Equal("OPEN"))
		})

		It("should not count half-open breakers as open", func() {
			two := 2
			cb, _ := registry.Create("subgraph-orders", &circuitbreaker.ConfigOverrides{
				HalfOpenMaxCalls: &two,
			})

			for i := 0; i < 3; i++ {
				cb.Execute(fail, nil)
			}
			time.Sleep(120 * time.Millisecond)

			// First test call succeeds but leaves the budget unfinished,
			// parking the breaker in HALF_OPEN.
			cb.Execute(succeed, nil)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

			status := registry.HealthStatus()
			Expect(status.Healthy).To(BeTrue())
			Expect(status.OpenCircuits).To(BeEmpty())
		})

		It("should sort the open circuit names", func() {
			for _, name := range []string{"subgraph-zeta", "subgraph-alpha"} {
				cb, _ := registry.Create(name, nil)
				for i := 0; i < 3; i++ {
					cb.Execute(fail, nil)
				}
			}

			status := registry.HealthStatus()
			Expect(status.OpenCircuits).To(Equal([]string{"subgraph-alpha", "subgraph-zeta"}))
		})
	})

	Describe("concurrent access", func() {
		It("should tolerate concurrent creates and lookups", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(2)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := registry.Create("subgraph-users", nil)
					Expect(err).NotTo(HaveOccurred())
				}()
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					registry.Get("subgraph-users")
					registry.HealthStatus()
				}()
			}
			wg.Wait()

			_, ok := registry.Get("subgraph-users")
			Expect(ok).To(BeTrue())
		})
	})
})
