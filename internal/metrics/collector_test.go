package metrics_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		promReg   *prometheus.Registry
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	counterValue := func(name, service, outcome string) float64 {
		families, err := promReg.Gather()
		Expect(err).NotTo(HaveOccurred())

		for _, family := range families {
			if family.GetName() != name {
				continue
			}
			for _, metric := range family.GetMetric() {
				labels := map[string]string{}
				for _, pair := range metric.GetLabel() {
					labels[pair.GetName()] = pair.GetValue()
				}
				if labels["service"] == service && (outcome == "" || labels["outcome"] == outcome) {
					if metric.GetCounter() != nil {
						return metric.GetCounter().GetValue()
					}
					return metric.GetGauge().GetValue()
				}
			}
		}
		return 0
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		promReg = prometheus.NewRegistry()
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log, promReg)
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("NewCollector", func() {
		It("should create a collector with specified buffer size", func() {
			c := metrics.NewCollector(500, log, prometheus.NewRegistry())
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("Start and event processing", func() {
		It("should process successful call events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:     metrics.EventCallSucceeded,
				Service:  "users",
				Duration: 12 * time.Millisecond,
			})

			Eventually(func() int64 {
				return collector.Snapshot().Services["users"].Successes
			}).Should(Equal(int64(1)))

			Eventually(func() float64 {
				return counterValue("gateway_subgraph_calls_total", "users", "success")
			}).Should(Equal(1.0))
		})

		It("should process rejection and fallback events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{Type: metrics.EventCallRejected, Service: "orders"})
			collector.Emit(metrics.Event{Type: metrics.EventFallbackServed, Service: "orders"})

			Eventually(func() int64 {
				return collector.Snapshot().Services["orders"].Rejections
			}).Should(Equal(int64(1)))
			Eventually(func() int64 {
				return collector.Snapshot().Services["orders"].Fallbacks
			}).Should(Equal(int64(1)))
		})

		It("should track breaker state transitions on the gauge", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:    metrics.EventStateChanged,
				Service: "users",
				State:   "OPEN",
			})

			Eventually(func() string {
				return collector.Snapshot().Services["users"].BreakerState
			}).Should(Equal("OPEN"))

			Eventually(func() float64 {
				return counterValue("gateway_circuit_breaker_state", "users", "")
			}).Should(Equal(2.0))
		})

		It("should stamp a timestamp on events that lack one", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{Type: metrics.EventCallFailed, Service: "users"})

			Eventually(func() int64 {
				return collector.Snapshot().Services["users"].Failures
			}).Should(Equal(int64(1)))
		})
	})

	Describe("Emit without a running collector", func() {
		It("should not block when the buffer fills", func() {
			small := metrics.NewCollector(1, log, prometheus.NewRegistry())

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				for i := 0; i < 10; i++ {
					small.Emit(metrics.Event{Type: metrics.EventCallRejected, Service: "users"})
				}
				close(done)
			}()

			Eventually(done).Should(BeClosed())
		})
	})

	Describe("shutdown", func() {
		It("should drain buffered events before stopping", func() {
			collector.Emit(metrics.Event{Type: metrics.EventCallRejected, Service: "users"})
			collector.Emit(metrics.Event{Type: metrics.EventCallRejected, Service: "users"})

			collector.Start(ctx)
			cancel()

			Eventually(func() int64 {
				return collector.Snapshot().Services["users"].Rejections
			}).Should(Equal(int64(2)))
		})
	})
})
