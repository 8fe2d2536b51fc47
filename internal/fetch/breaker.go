package fetch

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// breakerSet holds one circuit breaker per upstream host so a dead registry
// does not burn the retry budget of every request aimed at it.
type breakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{breakers: make(map[string]*circuit.Breaker)}
}

func (bs *breakerSet) get(host string) *circuit.Breaker {
	bs.mu.RLock()
	br, ok := bs.breakers[host]
	bs.mu.RUnlock()
	if ok {
		return br
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if br, ok := bs.breakers[host]; ok {
		return br
	}

	// Trips after 5 consecutive failures, recovering on an exponential
	// schedule.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	bs.breakers[host] = br
	return br
}

func (bs *breakerSet) call(rawURL string, fn func() error) error {
	br := bs.get(hostOf(rawURL))
	if !br.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", hostOf(rawURL), ErrNetwork)
	}
	return br.Call(fn, 0)
}

// States reports the open/closed state of every tracked breaker.
func (bs *breakerSet) States() map[string]string {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	states := make(map[string]string, len(bs.breakers))
	for host, br := range bs.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
