package utils

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

// FormatValue 余额类字段按精度缩放为展示字符串，其他类型原样返回
// 例：FormatValue("T::Balance", 1000000000, 12) => "0.001"
func FormatValue(typeLabel string, raw interface{}, decimals int) interface{} {
	if !strings.Contains(strings.ToLower(typeLabel), "balance") {
		return raw
	}

	amount, ok := toBigInt(raw)
	if !ok {
		return raw
	}
	return ScaleAmount(amount, decimals)
}

// ScaleAmount 将最小单位金额除以 10^decimals，去掉多余的0
func ScaleAmount(amount *big.Int, decimals int) string {
	if decimals <= 0 {
		return amount.String()
	}

	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(amount, denom).FloatString(decimals)

	if strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimSuffix(text, ".")
	}
	if text == "-0" {
		return "0"
	}
	return text
}

// toBigInt 支持 JSON 解码后的常见数值表示
func toBigInt(raw interface{}) (*big.Int, bool) {
	switch v := raw.(type) {
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return v, true
	case int:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case float64:
		// JSON 数字默认解码为 float64，只接受整数值
		f := new(big.Float).SetFloat64(v)
		if !f.IsInt() {
			return nil, false
		}
		i, _ := f.Int(nil)
		return i, true
	case json.Number:
		return parseBigString(v.String())
	case string:
		return parseBigString(v)
	case fmt.Stringer:
		return parseBigString(v.String())
	default:
		return nil, false
	}
}

func parseBigString(s string) (*big.Int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil, false
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	// ParseBig256 同时支持十进制与 0x 十六进制
	value, ok := math.ParseBig256(s)
	if !ok {
		return nil, false
	}
	if negative {
		value.Neg(value)
	}
	return value, true
}
