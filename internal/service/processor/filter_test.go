package processor_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/internal/service/processor"
	"chainflow-backend/internal/types"
)

var _ = Describe("FilterProcessor", func() {
	var (
		p  *processor.FilterProcessor
		ec *processor.ExecutionContext
	)

	BeforeEach(func() {
		p = processor.NewFilterProcessor()
		ec = depositContext()
	})

	cond := func(variable string, op processor.Operator, value interface{}) processor.Condition {
		return processor.Condition{Variable: variable, Operator: op, Value: value}
	}

	run := func(groups ...[]processor.Condition) (*processor.Result, error) {
		return p.Process(context.Background(), task(types.TaskTypeFilter, "filter", processor.FilterConfig{Conditions: groups}), ec)
	}

	It("matches when there are no conditions", func() {
		res, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Mismatch).To(BeFalse())
		Expect(res.Output).To(Equal(processor.FilterOutput{Match: true}))
	})

	It("matches an empty config", func() {
		t := &types.WorkflowTask{Type: types.TaskTypeFilter, Name: "f"}
		res, err := p.Process(context.Background(), t, ec)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Mismatch).To(BeFalse())
	})

	DescribeTable("single conditions",
		func(c processor.Condition, expected bool) {
			res, err := run([]processor.Condition{c})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Output).To(Equal(processor.FilterOutput{Match: expected}))
			Expect(res.Mismatch).To(Equal(!expected))
		},
		Entry("greater than on a decimal string", cond("event.data.amount", processor.OpGreaterThan, 100), true),
		Entry("greater than false", cond("event.data.amount", processor.OpGreaterThan, 200), false),
		Entry("greater than equal boundary", cond("event.data.amount", processor.OpGreaterThanEqual, "150.5"), true),
		Entry("less than", cond("event.data.amount", processor.OpLessThan, 150.6), true),
		Entry("less than equal false", cond("event.data.amount", processor.OpLessThanEqual, 150), false),
		Entry("equal numeric across representations", cond("event.data.amount", processor.OpEqual, 150.5), true),
		Entry("equal string", cond("event.data.who", processor.OpEqual, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"), true),
		Entry("equal block number", cond("event.blockNumber", processor.OpEqual, 42), true),
		Entry("contains ignores case", cond("event.data.memo", processor.OpContains, "hello"), true),
		Entry("contains false", cond("event.data.memo", processor.OpContains, "bye"), false),
		Entry("is true", cond("event.data.flag", processor.OpIsTrue, nil), true),
		Entry("is false", cond("event.data.flag", processor.OpIsFalse, nil), false),
		Entry("identity fields", cond("chain.name", processor.OpEqual, "polkadot"), true),
	)

	It("requires every condition of an AND group", func() {
		res, err := run([]processor.Condition{
			cond("event.data.amount", processor.OpGreaterThan, 100),
			cond("event.data.memo", processor.OpContains, "nope"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Mismatch).To(BeTrue())
	})

	It("matches when any OR group matches", func() {
		res, err := run(
			[]processor.Condition{cond("event.data.amount", processor.OpGreaterThan, 1000)},
			[]processor.Condition{cond("event.data.flag", processor.OpIsTrue, nil)},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Mismatch).To(BeFalse())
	})

	It("reports no match when every OR group fails", func() {
		res, err := run(
			[]processor.Condition{cond("event.data.amount", processor.OpGreaterThan, 1000)},
			[]processor.Condition{cond("event.data.flag", processor.OpIsFalse, nil)},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(Equal(processor.FilterOutput{Match: false}))
		Expect(res.Mismatch).To(BeTrue())
	})

	It("fails on a missing variable", func() {
		_, err := run([]processor.Condition{cond("event.data.missing", processor.OpEqual, 1)})
		Expect(err).To(MatchError(ContainSubstring("variable event.data.missing not found")))
	})

	It("fails when a numeric operator meets a non numeric value", func() {
		_, err := run([]processor.Condition{cond("event.data.memo", processor.OpGreaterThan, 1)})
		Expect(err).To(HaveOccurred())
	})

	It("reads previous task outputs", func() {
		ec.SetTaskOutput("notify", map[string]interface{}{"delivered": true})
		res, err := run([]processor.Condition{cond("tasks.notify.delivered", processor.OpIsTrue, nil)})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Mismatch).To(BeFalse())
	})

	Describe("Validate", func() {
		It("rejects unknown operators", func() {
			err := p.Validate(json.RawMessage(`{"conditions":[[{"variable":"event.data.amount","operator":"between","value":1}]]}`))
			Expect(errors.Is(err, processor.ErrInvalidTaskConfig)).To(BeTrue())
		})

		It("rejects binary operators without a value", func() {
			err := p.Validate(json.RawMessage(`{"conditions":[[{"variable":"event.data.amount","operator":"equal"}]]}`))
			Expect(err).To(MatchError(processor.ErrInvalidTaskConfig))
		})

		It("accepts unary operators without a value", func() {
			Expect(p.Validate(json.RawMessage(`{"conditions":[[{"variable":"event.success","operator":"isTrue"}]]}`))).To(Succeed())
		})

		It("rejects malformed json", func() {
			Expect(p.Validate(json.RawMessage(`{"conditions":`))).To(MatchError(processor.ErrInvalidTaskConfig))
		})
	})
})
