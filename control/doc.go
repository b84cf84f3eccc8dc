// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration and metrics primitives shared by the framing core and
// the channel fan-out core: a hot-reloadable key/value config store and
// a thread-safe counter registry for observability.
package control
