package assert

import (
	"fmt"
	"reflect"
	"runtime"
)

// NotNil panics when v is nil or a typed nil.
func NotNil(v interface{}) {
	if v == nil {
		panic("assert: unexpected nil")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("assert: unexpected nil %T", v))
		}
	}
}

// NotCircular panics when the calling singleton constructor re-enters itself on
// the same call stack, which would otherwise deadlock inside sync.Once.
func NotCircular() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}
	name := fn.Name()

	depth := 0
	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function == name {
			depth++
		}
		if !more {
			break
		}
	}
	if depth > 0 {
		panic("assert: circular initialization in " + name)
	}
}
