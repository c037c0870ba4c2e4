package controller

import "context"

// Invoker runs fn on the event-loop goroutine and waits for it.
type Invoker interface {
	Invoke(ctx context.Context, fn func() error) error
}

// Remote lets other goroutines (HTTP handlers, stdin) drive a Controller
// without breaking its single-goroutine contract.
type Remote struct {
	ctrl *Controller
	loop Invoker
}

func NewRemote(ctrl *Controller, loop Invoker) *Remote {
	return &Remote{ctrl: ctrl, loop: loop}
}

// Toggle flips the lamp and returns its new state.
func (r *Remote) Toggle(ctx context.Context) (bool, error) {
	var on bool
	err := r.loop.Invoke(ctx, func() error {
		if err := r.ctrl.Toggle(); err != nil {
			return err
		}
		on = r.ctrl.Lamp()
		return nil
	})
	return on, err
}

// SetLamp switches the lamp to the requested state.
func (r *Remote) SetLamp(ctx context.Context, on bool) error {
	return r.loop.Invoke(ctx, func() error {
		return r.ctrl.SetLamp(on)
	})
}
