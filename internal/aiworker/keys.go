package aiworker

import (
	"errors"
	"strings"
	"sync"
)

var ErrNoKeys = errors.New("no API keys configured")

// keyPool rotates through the configured provider keys. Rotation is
// sticky: the pool keeps serving the same key until a rate-limit answer
// advances it.
type keyPool struct {
	mu    sync.Mutex
	keys  []string
	index int
}

// newKeyPool keeps only keys carrying the provider prefix; placeholders
// from unset environment variables are dropped.
func newKeyPool(candidates []string, prefix string) *keyPool {
	keys := make([]string, 0, len(candidates))
	for _, k := range candidates {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return &keyPool{keys: keys}
}

func (p *keyPool) Len() int {
	return len(p.keys)
}

// Current returns the active key.
func (p *keyPool) Current() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", ErrNoKeys
	}
	return p.keys[p.index], nil
}

// Advance moves to the next key, wrapping around the pool.
func (p *keyPool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return
	}
	p.index = (p.index + 1) % len(p.keys)
}

// Masked returns the active key shortened for logs.
func (p *keyPool) Masked() string {
	key, err := p.Current()
	if err != nil {
		return "none"
	}
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
