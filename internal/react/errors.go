package react

import "errors"

var (
	// ErrHookOrder reports that a component called hooks in a different
	// order, or a different number of times, than on its first render.
	ErrHookOrder = errors.New("react: hook order changed between renders")
	// ErrHookOutsideRender reports a hook call through a render context
	// whose render has already returned.
	ErrHookOutsideRender = errors.New("react: hook called outside of a component render")
	// ErrInvalidComponent reports a component reference that is neither a
	// function, a class with a render method, nor a definition object.
	ErrInvalidComponent = errors.New("react: invalid component reference")
)
