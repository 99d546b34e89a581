package cmd

import (
	"context"
	"fmt"
	"runtime/debug"
)

// PanicError is returned by a terminal executor whose command panicked.
type PanicError struct {
	Command string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("command %s panicked: %v", e.Command, e.Value)
}

// Terminal returns the final stage of every chain. It calls executed, then
// runs the invoked command, converting a panic into a *PanicError.
func Terminal(executed func()) Next {
	return func(ctx context.Context, inv *Invocation) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Command: inv.Command.Name(), Value: r, Stack: debug.Stack()}
			}
		}()
		if executed != nil {
			executed()
		}
		return inv.Command.Run(ctx, inv)
	}
}
