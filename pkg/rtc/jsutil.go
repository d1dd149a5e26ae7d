//go:build js && wasm

package rtc

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"
)

// recoveryToError converts a panic raised by syscall/js into an error.
func recoveryToError(e any) error {
	switch e := e.(type) {
	case error:
		return e
	case string:
		return errors.New(e)
	default:
		return fmt.Errorf("unexpected panic: %v", e)
	}
}

// awaitPromise blocks until promise settles or ctx is done. The then/catch
// funcs are released when the promise settles, even if ctx gave up first.
func awaitPromise(ctx context.Context, promise js.Value) (js.Value, error) {
	type outcome struct {
		value js.Value
		err   error
	}
	done := make(chan outcome, 1)

	var onFulfilled, onRejected js.Func
	release := func() {
		onFulfilled.Release()
		onRejected.Release()
	}
	onFulfilled = js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- outcome{value: firstArg(args)}
		release()
		return nil
	})
	onRejected = js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- outcome{err: js.Error{Value: firstArg(args)}}
		release()
		return nil
	})
	promise.Call("then", onFulfilled, onRejected)

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}

func firstArg(args []js.Value) js.Value {
	if len(args) == 0 {
		return js.Undefined()
	}
	return args[0]
}

func isNullish(v js.Value) bool {
	return v.IsNull() || v.IsUndefined()
}

// setListener installs fn in an on* slot of target. The returned release
// clears the slot if fn still occupies it, then frees fn.
func setListener(target js.Value, slot string, fn func(this js.Value, args []js.Value) any) func() {
	f := js.FuncOf(fn)
	target.Set(slot, f)
	return func() {
		if target.Get(slot).Equal(f.Value) {
			target.Set(slot, js.Null())
		}
		f.Release()
	}
}

func stringsToJS(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
