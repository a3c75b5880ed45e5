// Package storage persists the small string key/value set each browser
// session needs across reloads and restarts.
package storage

import "context"

// Backend stores values per session id. SetMany and Delete apply to all the
// given keys at once: either every key is written/removed or none is.
type Backend interface {
	Get(ctx context.Context, sid, key string) (string, bool, error)
	SetMany(ctx context.Context, sid string, values map[string]string) error
	Delete(ctx context.Context, sid string, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// KV is a Backend bound to one session id.
type KV struct {
	backend Backend
	sid     string
}

func Scope(backend Backend, sid string) KV {
	return KV{backend: backend, sid: sid}
}

func (kv KV) Get(ctx context.Context, key string) (string, bool, error) {
	return kv.backend.Get(ctx, kv.sid, key)
}

func (kv KV) Set(ctx context.Context, values map[string]string) error {
	return kv.backend.SetMany(ctx, kv.sid, values)
}

func (kv KV) Remove(ctx context.Context, keys ...string) error {
	return kv.backend.Delete(ctx, kv.sid, keys...)
}
