package processor

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render 替换模板中的 {{ path }} 占位符，路径不存在时替换为空字符串
func Render(tpl string, ec *ExecutionContext) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		return resultText(ec.Lookup(path))
	})
}

func resultText(r gjson.Result) string {
	switch {
	case !r.Exists():
		return ""
	case r.IsObject(), r.IsArray():
		return r.Raw
	default:
		return r.String()
	}
}
