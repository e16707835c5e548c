package utils_test

import (
	"encoding/json"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/pkg/utils"
)

var _ = Describe("FormatValue", func() {
	DescribeTable("balance-like labels are scaled by decimals",
		func(label string, raw interface{}, decimals int, expected string) {
			Expect(utils.FormatValue(label, raw, decimals)).To(Equal(expected))
		},
		Entry("T::Balance from int", "T::Balance", 1000000000, 12, "0.001"),
		Entry("lower case label", "BalanceOf<T>", int64(1500000000000), 12, "1.5"),
		Entry("decimal string", "T::Balance", "123456789012345678901", 12, "123456789.012345678901"),
		Entry("hex string", "T::Balance", "0x3b9aca00", 9, "1"),
		Entry("json float", "Balance", float64(2500000000), 10, "0.25"),
		Entry("json number", "Balance", json.Number("42"), 0, "42"),
		Entry("big int", "Balance", big.NewInt(1), 12, "0.000000000001"),
		Entry("zero", "Balance", 0, 12, "0"),
		Entry("negative", "Balance", "-20000000000", 10, "-2"),
	)

	DescribeTable("other labels are returned unchanged",
		func(label string, raw interface{}) {
			Expect(utils.FormatValue(label, raw, 12)).To(Equal(raw))
		},
		Entry("T::Other", "T::Other", 5),
		Entry("AccountId", "AccountId32", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"),
		Entry("u32", "u32", uint32(7)),
	)

	It("returns non numeric balance values unchanged", func() {
		Expect(utils.FormatValue("T::Balance", "not-a-number", 12)).To(Equal("not-a-number"))
		Expect(utils.FormatValue("T::Balance", 1.5, 12)).To(Equal(1.5))
	})
})
