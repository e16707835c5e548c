package decoder

import (
	"hash/fnv"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"chainflow-backend/internal/types"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
)

const exampleText = "The quick brown fox jumps over the lazy dog"

var (
	accountPattern = regexp.MustCompile(`(?i)^(AccountId\w*|MultiAddress|Address|LookupSource)$`)
	hashPattern    = regexp.MustCompile(`(?i)^(H160|H256|H512|Hash|BlockHash|\w*Hash)$`)
)

// NewExampleRand 根据事件名生成确定性的随机源，保证同一版本重复解析结果一致
func NewExampleRand(seed string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// PopulateExamples 为叶子节点填充示例值，仅用于文档与预览
func PopulateExamples(desc *types.FieldDescriptor, rng *rand.Rand) {
	if desc == nil {
		return
	}

	name := shortName(desc.OriginalType)
	switch {
	case accountPattern.MatchString(name):
		desc.Example = exampleAccount(rng)
		return
	case hashPattern.MatchString(name):
		desc.Example = exampleHash(rng, name)
		return
	}

	if len(desc.Definition) > 0 {
		for _, child := range desc.Definition {
			PopulateExamples(child, rng)
		}
		return
	}

	switch desc.Type {
	case types.GeneralTypeBool:
		desc.Example = true
	case types.GeneralTypeString:
		desc.Example = exampleText
	case types.GeneralTypeNumber:
		desc.Example = exampleNumber(rng, desc.Primitive)
	}
}

// shortName 取类型标签最后一段并去掉泛型参数，例如 T::AccountId -> AccountId
func shortName(label string) string {
	if i := strings.Index(label, "<"); i >= 0 {
		label = label[:i]
	}
	if i := strings.LastIndex(label, "::"); i >= 0 {
		label = label[i+2:]
	}
	return strings.TrimSpace(label)
}

func exampleNumber(rng *rand.Rand, primitive string) interface{} {
	m := numberPattern.FindStringSubmatch(primitive)
	if m == nil {
		return rng.Intn(1000)
	}

	signed := strings.EqualFold(m[1], "i")
	bits, _ := strconv.Atoi(m[2])

	// 128/256 位通常是余额，给出已按精度缩放的小数
	if bits >= 128 {
		return math.Round(rng.Float64()*100000*10000) / 10000
	}

	if signed {
		half := int64(1) << (bits - 1)
		if bits == 64 {
			return rng.Int63() - rng.Int63()
		}
		return rng.Int63n(2*half) - half
	}
	if bits == 64 {
		return rng.Uint64()
	}
	return rng.Int63n(int64(1) << bits)
}

// exampleAccount 生成与 SS58 地址等长的 base58 字符串
func exampleAccount(rng *rand.Rand) string {
	buf := make([]byte, 35)
	buf[0] = 42
	for i := 1; i < len(buf); i++ {
		buf[i] = byte(rng.Intn(256))
	}
	return base58.Encode(buf)
}

func exampleHash(rng *rand.Rand, name string) string {
	size := 32
	switch strings.ToUpper(name) {
	case "H160":
		size = 20
	case "H512":
		size = 64
	}

	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(rng.Intn(256))
	}
	return hexutil.Encode(buf)
}
