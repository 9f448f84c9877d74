package booking

import "sync"

// inflight rejects a second run of the same logical operation while the first is running.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{keys: make(map[string]struct{})}
}

func (g *inflight) acquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.keys[key]; busy {
		return nil, false
	}
	g.keys[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.keys, key)
		g.mu.Unlock()
	}, true
}
