package compilers

import (
	"fmt"
	"sync"

	"github.com/bawdo/goshawk/ir"
)

// Cache memoizes compiled statements across graphs. Keys combine the
// dialect name, the option set, and the plan fingerprint, so structurally
// identical plans share an entry no matter which arena built them. Safe
// for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Result)}
}

// Compile returns the cached Result for an equivalent plan when it has one
// and compiles and stores otherwise. Failed compilations are not cached.
func (c *Cache) Compile(g *ir.Graph, root ir.NodeID, d Dialect, opts ...Option) (Result, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	key := fmt.Sprintf("%s|%v|%v|%s", d.Name, cfg.parameterize, cfg.pretty, g.Fingerprint(root))
	c.mu.RLock()
	res, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return withCopiedParams(res), nil
	}
	res, err := compile(g, root, d, cfg)
	if err != nil {
		return Result{}, err
	}
	c.mu.Lock()
	c.entries[key] = res
	c.mu.Unlock()
	return withCopiedParams(res), nil
}

// Len reports the number of cached statements.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// withCopiedParams hands each caller its own Params slice; cached results
// are shared.
func withCopiedParams(res Result) Result {
	if res.Params != nil {
		res.Params = append([]any(nil), res.Params...)
	}
	return res
}
