// Package middleware decorates a SessionStore with privacy controls applied
// before sessions reach the backing store.
package middleware

import "github.com/aretw0/callflow/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Wrap applies mws to store. The first middleware is the outermost.
func Wrap(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
