// File: session/dispatcher.go
// Author: momentics <momentics@gmail.com>
//
// Dispatcher is the narrow view of the server's main event loop that
// Client needs to schedule work back onto, e.g. announcing that a
// migration has fully completed. The concrete server dispatch loop is
// an external collaborator outside this module's scope (spec section 1).

package session

// Dispatcher posts fn to run on the server's main loop.
type Dispatcher interface {
	Post(fn func())
}

type noopDispatcher struct{}

func (noopDispatcher) Post(fn func()) { fn() }
