package worker_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/internal/queue"
	"chainflow-backend/internal/service/executor"
	"chainflow-backend/internal/types"
	"chainflow-backend/internal/worker"
)

var _ = Describe("Stage handlers", func() {
	blockMsg := types.BlockMessage{
		ChainID: 1,
		Block:   types.BlockMeta{Hash: "0xb", Number: 5},
		Events:  []types.BlockEvent{{Name: "balances.Deposit", Data: []interface{}{"a", "1"}}},
	}

	It("fans matched jobs out to the workflow queue", func() {
		m := &fakeMatcher{matchFn: func(_ context.Context, chainID int64, block types.BlockMeta, events []types.BlockEvent) ([]types.ExecutionJob, error) {
			Expect(chainID).To(Equal(int64(1)))
			Expect(block.Hash).To(Equal("0xb"))
			Expect(events).To(HaveLen(1))
			return []types.ExecutionJob{{ID: "wf-1_0xb"}, {ID: "wf-2_0xb"}}, nil
		}}
		producer := &fakeProducer{}

		err := worker.NewBlockHandler(m, producer)(context.Background(), message("1-0", 1, blockMsg))
		Expect(err).NotTo(HaveOccurred())
		Expect(producer.keys).To(Equal([]string{"wf-1_0xb", "wf-2_0xb"}))
	})

	It("retries the block when enqueueing fails", func() {
		m := &fakeMatcher{matchFn: func(context.Context, int64, types.BlockMeta, []types.BlockEvent) ([]types.ExecutionJob, error) {
			return []types.ExecutionJob{{ID: "wf-1_0xb"}}, nil
		}}
		err := worker.NewBlockHandler(m, &fakeProducer{err: errors.New("redis down")})(context.Background(), message("1-0", 1, blockMsg))
		Expect(err).To(MatchError(ContainSubstring("redis down")))
	})

	It("drops malformed block messages", func() {
		msg := queue.Message{ID: "1-0", Payload: []byte("not json"), Attempt: 1}
		Expect(worker.NewBlockHandler(&fakeMatcher{}, &fakeProducer{})(context.Background(), msg)).To(Succeed())
	})

	It("executes workflow jobs with the delivery attempt", func() {
		var seen *types.ExecutionJob
		exec := &fakeExecutor{executeFn: func(_ context.Context, job *types.ExecutionJob) (executor.Outcome, error) {
			seen = job
			return executor.OutcomeSucceeded, nil
		}}
		err := worker.NewWorkflowHandler(exec)(context.Background(), message("1-0", 2, types.ExecutionJob{ID: "wf-1_0xb", WorkflowID: "wf-1"}))
		Expect(err).NotTo(HaveOccurred())
		Expect(seen.ID).To(Equal("wf-1_0xb"))
		Expect(seen.Attempt).To(Equal(2))
	})

	It("returns executor infrastructure errors for retry", func() {
		exec := &fakeExecutor{executeFn: func(context.Context, *types.ExecutionJob) (executor.Outcome, error) {
			return "", errors.New("db down")
		}}
		err := worker.NewWorkflowHandler(exec)(context.Background(), message("1-0", 1, types.ExecutionJob{ID: "x"}))
		Expect(err).To(MatchError("db down"))
	})
})
