package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/datatypes"

	"chainflow-backend/internal/service/executor"
	"chainflow-backend/internal/service/matcher"
	"chainflow-backend/internal/service/processor"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/notification"
)

type recordingWebhook struct {
	sent  []*notification.WebhookMessage
	err   error
	delay time.Duration
}

func (r *recordingWebhook) Send(ctx context.Context, msg *notification.WebhookMessage) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.sent = append(r.sent, msg)
	return r.err
}

type staticCatalog struct{ defs []types.EventDefinition }

func (s staticCatalog) LookupByNames(context.Context, int64, []string) ([]types.EventDefinition, error) {
	return s.defs, nil
}

type staticRunning struct{ store *memoryWorkflows }

func (s staticRunning) GetRunningByEventIDs(context.Context, []int64) ([]types.Workflow, error) {
	var out []types.Workflow
	for _, wf := range s.store.workflows {
		if wf.Status == types.WorkflowStatusRunning {
			out = append(out, *wf)
		}
	}
	return out, nil
}

type staticChains struct{}

func (staticChains) GetChainByChainID(_ context.Context, chainID int64) (*types.SupportChain, error) {
	return &types.SupportChain{ChainID: chainID, ChainName: "polkadot", TokenDecimals: 10}, nil
}

var _ = Describe("PipelineExecutor", func() {
	var (
		guard    *memoryGuard
		logs     *memoryLogs
		store    *memoryWorkflows
		webhook  *recordingWebhook
		exec     *executor.PipelineExecutor
		match    *matcher.BlockMatcher
		block    types.BlockMeta
		events   []types.BlockEvent
		depositD types.EventDefinition
	)

	newWorkflow := func(tasks ...types.WorkflowTask) *types.Workflow {
		wf := &types.Workflow{
			ID:          "wf-1",
			Name:        "deposit alerts",
			UserID:      9,
			UserAddress: "0x9999999999999999999999999999999999999999",
			ChainID:     1,
			Status:      types.WorkflowStatusRunning,
			Tasks:       tasks,
		}
		store.workflows[wf.ID] = wf
		return wf
	}

	triggerTask := func() types.WorkflowTask {
		return types.WorkflowTask{
			ID: "task-trigger", WorkflowID: "wf-1", Type: types.TaskTypeTrigger, Name: "trigger",
			Config: rawConfig(processor.TriggerConfig{EventID: 11}), EventID: int64Ptr(11),
		}
	}

	webhookTask := func(dependsOn string, secret string) types.WorkflowTask {
		return types.WorkflowTask{
			ID: "task-hook", WorkflowID: "wf-1", Type: types.TaskTypeWebhook, Name: "hook", DependsOn: strPtr(dependsOn),
			Config: rawConfig(processor.WebhookConfig{URL: "https://hooks.example.com/in", Secret: secret, Message: "{{event.data.who}}"}),
		}
	}

	filterTask := func(threshold interface{}) types.WorkflowTask {
		return types.WorkflowTask{
			ID: "task-filter", WorkflowID: "wf-1", Type: types.TaskTypeFilter, Name: "filter", DependsOn: strPtr("task-trigger"),
			Config: rawConfig(processor.FilterConfig{Conditions: [][]processor.Condition{{
				{Variable: "event.data.amount", Operator: processor.OpGreaterThan, Value: threshold},
			}}}),
		}
	}

	jobs := func() []types.ExecutionJob {
		out, err := match.Match(context.Background(), 1, block, events)
		Expect(err).NotTo(HaveOccurred())
		return out
	}

	BeforeEach(func() {
		guard = newMemoryGuard()
		logs = &memoryLogs{}
		store = &memoryWorkflows{workflows: map[string]*types.Workflow{}}
		webhook = &recordingWebhook{}

		registry := processor.NewRegistry(
			processor.NewTriggerProcessor(),
			processor.NewFilterProcessor(),
			processor.NewWebhookProcessor(webhook, nil),
		)
		exec = executor.NewPipelineExecutor(store, logs, guard, registry, time.Second)

		depositD = types.EventDefinition{
			ID: 11, ChainID: 1, Pallet: "Balances", Name: "balances.Deposit", Kind: types.EventKindEvent,
			Schema: datatypes.NewJSONType([]*types.FieldDescriptor{
				{Name: "who", Type: types.GeneralTypeString, OriginalType: "T::AccountId"},
				{Name: "amount", Type: types.GeneralTypeNumber, OriginalType: "T::Balance"},
			}),
		}
		match = matcher.NewBlockMatcher(staticCatalog{defs: []types.EventDefinition{depositD}}, staticRunning{store: store}, staticChains{})

		block = types.BlockMeta{Hash: "0xfeed", Number: 20000000, Timestamp: 1700000000000}
		// 25 DOT
		events = []types.BlockEvent{{
			Name:    "balances.Deposit",
			Data:    []interface{}{"14E5nqKAp3oAJcmzgZhUD2RcptBeUBScxKHgJKU4HPNcKVf3", "250000000000"},
			Success: true,
		}}
	})

	It("runs a trigger and a webhook and records both task logs", func() {
		newWorkflow(triggerTask(), webhookTask("task-trigger", ""))

		js := jobs()
		Expect(js).To(HaveLen(1))
		Expect(js[0].ID).To(Equal("wf-1_0xfeed"))

		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeSucceeded))

		Expect(logs.workflowLogs).To(HaveLen(1))
		Expect(logs.workflowLogs[0].Status).To(Equal(types.ExecutionStatusSuccess))
		Expect(logs.workflowLogs[0].JobID).To(Equal("wf-1_0xfeed"))

		Expect(logs.taskLogs).To(HaveLen(2))
		Expect(logs.taskLogs[0].TaskName).To(Equal("trigger"))
		Expect(logs.taskLogs[0].Status).To(Equal(types.ExecutionStatusSuccess))
		Expect(logs.taskLogs[1].TaskName).To(Equal("hook"))
		Expect(logs.taskLogs[1].Status).To(Equal(types.ExecutionStatusSuccess))
		Expect(logs.taskLogs[1].Sequence).To(Equal(1))
		Expect(logs.taskLogs[1].StartedAt).NotTo(BeNil())

		var input struct {
			Headers map[string]string        `json:"headers"`
			Body    processor.WebhookPayload `json:"body"`
		}
		Expect(json.Unmarshal(logs.taskLogs[1].Input, &input)).To(Succeed())
		Expect(input.Body.Event.Data).To(HaveKeyWithValue("who", "14E5nqKAp3oAJcmzgZhUD2RcptBeUBScxKHgJKU4HPNcKVf3"))
		Expect(input.Body.Event.Data).To(HaveKeyWithValue("amount", "25"))
		Expect(input.Headers).NotTo(HaveKey(processor.SignatureHeader))

		Expect(webhook.sent).To(HaveLen(1))
		Expect(guard.get("wf-1_0xfeed")).To(Equal("done"))
	})

	It("attaches a signature header when the webhook has a secret", func() {
		newWorkflow(triggerTask(), webhookTask("task-trigger", "topsecret"))

		js := jobs()
		_, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())

		Expect(webhook.sent).To(HaveLen(1))
		msg := webhook.sent[0]
		Expect(msg.Headers[processor.SignatureHeader]).NotTo(BeEmpty())
		Expect(msg.Headers[processor.SignatureHeader]).To(Equal(processor.Sign("topsecret", msg.Body)))
	})

	It("discards every log when the filter does not match", func() {
		newWorkflow(triggerTask(), filterTask(100), webhookTask("task-filter", ""))

		js := jobs()
		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeFiltered))
		Expect(logs.workflowLogs).To(BeEmpty())
		Expect(logs.taskLogs).To(BeEmpty())
		Expect(webhook.sent).To(BeEmpty())
		Expect(guard.get("wf-1_0xfeed")).To(Equal("done"))
	})

	It("continues past a matching filter", func() {
		newWorkflow(triggerTask(), filterTask(10), webhookTask("task-filter", ""))

		js := jobs()
		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeSucceeded))
		Expect(logs.taskLogs).To(HaveLen(3))
		Expect(string(logs.taskLogs[1].Output)).To(MatchJSON(`{"match":true}`))
	})

	It("creates a single workflow log for a redelivered job", func() {
		newWorkflow(triggerTask(), webhookTask("task-trigger", ""))

		js := jobs()
		first, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(executor.OutcomeSucceeded))

		again := jobs()
		second, err := exec.Execute(context.Background(), &again[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(executor.OutcomeDuplicate))

		Expect(logs.workflowLogs).To(HaveLen(1))
		Expect(webhook.sent).To(HaveLen(1))
	})

	It("treats an existing workflow log as a duplicate even without the guard", func() {
		newWorkflow(triggerTask(), webhookTask("task-trigger", ""))
		js := jobs()
		_, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())

		delete(guard.state, js[0].ID)
		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeDuplicate))
		Expect(logs.workflowLogs).To(HaveLen(1))
	})

	It("fails the workflow and skips the remaining tasks when a task fails", func() {
		webhook.err = notification.ErrWebhookNotFound
		newWorkflow(triggerTask(), webhookTask("task-trigger", ""), types.WorkflowTask{
			ID: "task-after", WorkflowID: "wf-1", Type: types.TaskTypeFilter, Name: "after", DependsOn: strPtr("task-hook"),
		})

		js := jobs()
		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeFailed))

		Expect(logs.workflowLogs[0].Status).To(Equal(types.ExecutionStatusFailed))
		Expect(logs.taskLogs).To(HaveLen(3))
		Expect(logs.taskLogs[1].Status).To(Equal(types.ExecutionStatusFailed))
		Expect(logs.taskLogs[1].Error).To(Equal("webhook URL does not exist"))
		Expect(logs.taskLogs[2].Status).To(Equal(types.ExecutionStatusSkipped))
	})

	It("fails a task that exceeds the timeout", func() {
		webhook.delay = time.Second
		registry := processor.NewRegistry(processor.NewTriggerProcessor(), processor.NewWebhookProcessor(webhook, nil))
		exec = executor.NewPipelineExecutor(store, logs, guard, registry, 20*time.Millisecond)
		newWorkflow(triggerTask(), webhookTask("task-trigger", ""))

		js := jobs()
		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeFailed))
		Expect(logs.taskLogs[1].Error).To(ContainSubstring("timed out"))
	})

	It("drops jobs for paused workflows", func() {
		wf := newWorkflow(triggerTask(), webhookTask("task-trigger", ""))
		js := jobs()
		wf.Status = types.WorkflowStatusPaused

		outcome, err := exec.Execute(context.Background(), &js[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(executor.OutcomeInactive))
		Expect(logs.workflowLogs).To(BeEmpty())
	})

	It("releases the claim on infrastructure errors", func() {
		newWorkflow(triggerTask(), webhookTask("task-trigger", ""))
		js := jobs()
		store.getErr = errors.New("connection refused")

		_, err := exec.Execute(context.Background(), &js[0])
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
		Expect(guard.get(js[0].ID)).To(BeEmpty())
	})
})
