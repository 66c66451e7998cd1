package sandbox

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/gabriel-vasile/mimetype"
)

// TypeByName returns the MIME type for a file name's extension, or ""
func TypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	typ := mime.TypeByExtension(ext)
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = typ[:i]
	}
	return strings.TrimSpace(typ)
}

// ExtensionByType returns the preferred extension for a MIME type, without
// the dot, or ""
func ExtensionByType(typ string) string {
	m := mimetype.Lookup(strings.ToLower(strings.TrimSpace(typ)))
	if m == nil {
		return ""
	}
	return strings.TrimPrefix(m.Extension(), ".")
}

// Mime returns the mime capability
func Mime() Capability {
	return func(env *Env) (goja.Value, error) {
		vm := env.VM()
		obj := vm.NewObject()
		err := obj.Set("getType", func(call goja.FunctionCall) goja.Value {
			if typ := TypeByName(call.Argument(0).String()); typ != "" {
				return vm.ToValue(typ)
			}
			return goja.Null()
		})
		if err != nil {
			return nil, err
		}
		err = obj.Set("getExtension", func(call goja.FunctionCall) goja.Value {
			if ext := ExtensionByType(call.Argument(0).String()); ext != "" {
				return vm.ToValue(ext)
			}
			return goja.Null()
		})
		if err != nil {
			return nil, err
		}
		return obj, nil
	}
}
