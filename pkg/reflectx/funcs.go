package reflectx

import (
	"reflect"
	"runtime"
	"strings"
)

// IsFunction reports whether fn is a function value.
func IsFunction(fn any) bool {
	if fn == nil {
		return false
	}

	ftpe := reflect.TypeOf(fn)
	isFunc := ftpe.Kind() == reflect.Func

	return isFunc
}

// FunctionName returns a short name for fn: the type name for named function
// types, otherwise the symbol name without its package path.
func FunctionName(fn any) string {
	if !IsFunction(fn) {
		return ""
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()

	var name string
	// For named types (like AgentFunction), use the type name
	if typ.Name() != "" {
		name = typ.String()
	} else {
		// For methods, use the method name
		if typ.NumIn() > 0 && typ.In(0).Kind() == reflect.Struct {
			if fn := runtime.FuncForPC(val.Pointer()); fn != nil {
				name = fn.Name()
				if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
					name = strings.TrimSuffix(name[lastDot+1:], "-fm")
				}
			}
		} else {
			// For anonymous functions, use the full signature
			if fn := runtime.FuncForPC(val.Pointer()); fn != nil {
				name = fn.Name()
				if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
					name = strings.TrimSuffix(name[lastDot+1:], "-fm")
				}
			} else {
				name = typ.String()
			}
		}
	}
	return name
}

// SameFunc reports whether a and b are function values with the same type
// and the same code pointer. It holds for two copies of one function value;
// closures built from the same literal may or may not match, depending on
// inlining.
func SameFunc(a, b any) bool {
	if !IsFunction(a) || !IsFunction(b) {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.IsNil() || vb.IsNil() {
		return va.IsNil() && vb.IsNil()
	}
	return va.Pointer() == vb.Pointer()
}
