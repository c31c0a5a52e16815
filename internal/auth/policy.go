package auth

import (
	"fmt"
	"sort"
	"sync"
)

// Policy is the mutable security state: the set of whitelisted intents and
// the confidence threshold. Mutations are visible to the next Authorize call
// immediately; a decision in flight reads one consistent snapshot.
type Policy struct {
	mu        sync.RWMutex
	whitelist map[string]struct{}
	threshold float64
}

func NewPolicy(intents []string, threshold float64) *Policy {
	p := &Policy{
		whitelist: make(map[string]struct{}, len(intents)),
		threshold: threshold,
	}
	for _, name := range intents {
		p.whitelist[name] = struct{}{}
	}
	return p
}

func (p *Policy) AddIntent(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.whitelist[name] = struct{}{}
}

func (p *Policy) RemoveIntent(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.whitelist, name)
}

func (p *Policy) SetThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold %v out of range [0,1]", threshold)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threshold = threshold
	return nil
}

func (p *Policy) Threshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.threshold
}

// Intents returns the whitelisted intent names, sorted.
func (p *Policy) Intents() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.whitelist))
	for name := range p.whitelist {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// view returns a consistent read of both fields for a single decision.
func (p *Policy) view(intent string) (whitelisted bool, threshold float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.whitelist[intent]
	return ok, p.threshold
}
