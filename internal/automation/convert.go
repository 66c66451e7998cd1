package automation

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// options wraps an optional JS options argument
type options struct {
	obj *goja.Object
}

func optionsOf(vm *goja.Runtime, v goja.Value) options {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return options{}
	}
	return options{obj: v.ToObject(vm)}
}

func (o options) value(name string) goja.Value {
	if o.obj == nil {
		return nil
	}
	v := o.obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v
}

func (o options) String(name, def string) string {
	if v := o.value(name); v != nil {
		return v.String()
	}
	return def
}

func (o options) Bool(name string, def bool) bool {
	if v := o.value(name); v != nil {
		return v.ToBoolean()
	}
	return def
}

func (o options) Int(name string, def int64) int64 {
	if v := o.value(name); v != nil {
		return v.ToInteger()
	}
	return def
}

func (o options) Float(name string, def float64) float64 {
	if v := o.value(name); v != nil {
		return v.ToFloat()
	}
	return def
}

func (o options) Strings(name string) []string {
	v := o.value(name)
	if v == nil {
		return nil
	}
	raw, ok := v.Export().([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// evaluateExpression turns page.evaluate arguments into a single expression
// for the page. Functions are serialized by source and called with
// JSON-encoded arguments.
func evaluateExpression(fn goja.Value, args []goja.Value) (string, error) {
	if _, ok := goja.AssertFunction(fn); !ok {
		return fn.String(), nil
	}

	encoded := make([]string, len(args))
	for i, arg := range args {
		var exported interface{}
		if arg != nil && !goja.IsUndefined(arg) {
			exported = arg.Export()
		}
		data, err := sonic.Marshal(exported)
		if err != nil {
			return "", fmt.Errorf("argument %d is not serializable: %w", i, err)
		}
		encoded[i] = string(data)
	}

	return fmt.Sprintf("(%s)(%s)", fn.String(), strings.Join(encoded, ", ")), nil
}

// decodeJSON parses a by-value evaluation result
func decodeJSON(raw []byte) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode evaluation result: %w", err)
	}
	return v, nil
}
