package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/gabriel-vasile/mimetype"
)

// decodeResult converts the value the harness resolved with. Must run on the
// loop goroutine.
func decodeResult(vm *goja.Runtime, val goja.Value) (*Result, error) {
	result := &Result{}
	if isNullish(val) {
		return result, nil
	}

	obj := val.ToObject(vm)
	if log := obj.Get("log"); !isNullish(log) {
		result.Log = log.String()
	}

	raw := obj.Get("result")
	if isNullish(raw) {
		return result, nil
	}
	artifact := raw.ToObject(vm)

	data, err := exportBytes(artifact.Get("buffer"))
	if err != nil {
		return nil, err
	}

	typ := ""
	if t := artifact.Get("type"); !isNullish(t) {
		typ = t.String()
	}
	if typ == "" && len(data) > 0 {
		typ = mimetype.Detect(data).String()
	}

	result.Result = &Artifact{Type: typ, Buffer: data}
	return result, nil
}

func exportBytes(val goja.Value) ([]byte, error) {
	if isNullish(val) {
		return nil, nil
	}

	switch v := val.Export().(type) {
	case goja.ArrayBuffer:
		return append([]byte(nil), v.Bytes()...), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported artifact buffer %T", v)
	}
}

func isNullish(val goja.Value) bool {
	return val == nil || goja.IsUndefined(val) || goja.IsNull(val)
}
