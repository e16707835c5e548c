package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/internal/queue"
	"chainflow-backend/internal/worker"
)

var _ = Describe("Pool", func() {
	var consumer *fakeConsumer

	BeforeEach(func() {
		consumer = &fakeConsumer{}
	})

	acked := func() []string { a, _, _ := consumer.snapshot(); return a }
	requeued := func() []string { _, r, _ := consumer.snapshot(); return r }
	dlq := func() []string { _, _, d := consumer.snapshot(); return d }

	It("acks handled messages", func() {
		consumer.pending = []queue.Message{message("1-0", 1, "{}"), message("2-0", 1, "{}")}
		pool := worker.NewPool("test", consumer, func(context.Context, queue.Message) error { return nil }, 2, 3)
		pool.Start(context.Background())
		defer pool.Stop()

		Eventually(acked).Should(ConsistOf("1-0", "2-0"))
	})

	It("processes reclaimed stale messages", func() {
		consumer.stale = []queue.Message{message("9-0", 2, "{}")}
		pool := worker.NewPool("test", consumer, func(context.Context, queue.Message) error { return nil }, 1, 3)
		pool.Start(context.Background())
		defer pool.Stop()

		Eventually(acked).Should(ConsistOf("9-0"))
	})

	It("requeues failures below the attempt limit and dead-letters the rest", func() {
		consumer.pending = []queue.Message{message("1-0", 1, "{}"), message("2-0", 3, "{}")}
		pool := worker.NewPool("test", consumer, func(context.Context, queue.Message) error {
			return errors.New("boom")
		}, 2, 3)
		pool.Start(context.Background())
		defer pool.Stop()

		Eventually(requeued).Should(ConsistOf("1-0"))
		Eventually(dlq).Should(ConsistOf("2-0"))
	})

	It("treats a panic as a failure", func() {
		consumer.pending = []queue.Message{message("1-0", 1, "{}")}
		pool := worker.NewPool("test", consumer, func(context.Context, queue.Message) error {
			panic("unexpected")
		}, 1, 3)
		pool.Start(context.Background())
		defer pool.Stop()

		Eventually(requeued).Should(ConsistOf("1-0"))
	})

	It("never runs more handlers than its size", func() {
		for i := 0; i < 10; i++ {
			consumer.pending = append(consumer.pending, message(string(rune('a'+i)), 1, "{}"))
		}
		var running, peak int32
		pool := worker.NewPool("test", consumer, func(context.Context, queue.Message) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}, 3, 3)
		pool.Start(context.Background())
		defer pool.Stop()

		Eventually(acked).Should(HaveLen(10))
		Expect(atomic.LoadInt32(&peak)).To(BeNumerically("<=", 3))
	})

	It("waits for in-flight messages on stop", func() {
		consumer.pending = []queue.Message{message("1-0", 1, "{}")}
		started := make(chan struct{})
		pool := worker.NewPool("test", consumer, func(ctx context.Context, _ queue.Message) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			return ctx.Err()
		}, 1, 3)
		pool.Start(context.Background())

		Eventually(started).Should(BeClosed())
		pool.Stop()
		Expect(acked()).To(ConsistOf("1-0"))
	})
})
