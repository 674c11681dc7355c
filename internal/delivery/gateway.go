// Package delivery translates domain messages into transport-specific send
// operations. The gateway resolves targets through a TTL cache, formats
// payloads, executes the transport behind a circuit breaker, and records
// per-channel statistics. Delivery is best-effort: every failure becomes a
// result value and a counter, never a panic out of the gateway.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/agentcoord/internal/events"
	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/registry"
)

var (
	ErrNoTransport      = errors.New("no transport for target kind")
	ErrTransportFailure = errors.New("transport failure")
	ErrCircuitOpen      = errors.New("delivery circuit open")
)

// HealthStatus summarizes transport-dependency availability.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
	HealthError     HealthStatus = "ERROR"
)

// Result is the outcome of one delivery attempt.
type Result struct {
	MessageID string
	AgentID   string
	Channel   string
	Success   bool
	Err       error
}

// BroadcastResult aggregates per-target outcomes of one broadcast.
type BroadcastResult struct {
	PerTarget    map[string]bool
	SuccessCount int
	FailureCount int
}

// channelStats holds per-channel delivery counters.
type channelStats struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// ChannelStats is the exported snapshot of one channel's counters.
type ChannelStats struct {
	Channel   string `json:"channel"`
	Attempts  int64  `json:"attempts"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
}

// Options configures gateway construction.
type Options struct {
	TargetTTL time.Duration
	Logger    logging.Logger
	Bus       *events.Bus // optional; delivery results are published when set
}

// Gateway executes message delivery against pluggable transports.
type Gateway struct {
	transports map[string]Transport
	cache      *targetCache
	breaker    *gobreaker.CircuitBreaker
	log        logging.Logger
	bus        *events.Bus

	mu           sync.Mutex
	stats        map[string]*channelStats
	lastErr      error
	healthChecks atomic.Int64
}

// NewGateway creates a gateway resolving targets from source and delivering
// through the given transports, keyed by Transport.Name.
func NewGateway(source TargetSource, transports []Transport, opts Options) *Gateway {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger{}
	}

	g := &Gateway{
		transports: make(map[string]Transport, len(transports)),
		cache:      newTargetCache(source, opts.TargetTTL),
		log:        log,
		bus:        opts.Bus,
		stats:      make(map[string]*channelStats),
	}
	for _, t := range transports {
		g.transports[t.Name()] = t
	}

	// One breaker across all channels: five consecutive failures trip it,
	// and it stays open for 30s before probing recovery. The breaker
	// provides failure isolation only; there is no retry here.
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "delivery",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("delivery breaker state change", "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller cancellation is not a transport fault.
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return g
}

// ResolveTarget returns the transport target for an agent, served from the
// TTL cache and refreshed from the backing source on miss or expiry.
func (g *Gateway) ResolveTarget(agentID string) (registry.Target, error) {
	return g.cache.resolve(agentID)
}

// InvalidateTarget drops an agent's cached target so the next delivery
// re-resolves it.
func (g *Gateway) InvalidateTarget(agentID string) {
	g.cache.invalidate(agentID)
}

// Deliver formats the message and executes the transport send for one
// target. It never panics: transport panics and errors become a failure
// Result with counters incremented and the error logged.
func (g *Gateway) Deliver(ctx context.Context, msg Message, target registry.Target) Result {
	payload := Format(msg)
	return g.deliverPayload(ctx, payload, msg.ID, target)
}

func (g *Gateway) deliverPayload(ctx context.Context, payload Payload, msgID string, target registry.Target) Result {
	res := Result{MessageID: msgID, AgentID: target.AgentID, Channel: target.Kind}

	transport, ok := g.transports[target.Kind]
	if !ok {
		res.Err = fmt.Errorf("kind %q: %w", target.Kind, ErrNoTransport)
		g.record(res)
		return res
	}

	_, err := g.breaker.Execute(func() (any, error) {
		return nil, g.safeSend(ctx, transport, payload, target)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		res.Err = err
		g.record(res)
		return res
	}

	res.Success = true
	g.record(res)
	return res
}

// safeSend converts a transport panic into an error so one misbehaving
// transport cannot take down the worker loop.
func (g *Gateway) safeSend(ctx context.Context, t Transport, payload Payload, target registry.Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s transport: %v", ErrTransportFailure, t.Name(), r)
		}
	}()
	if sendErr := t.Send(ctx, payload, target); sendErr != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, sendErr)
	}
	return nil
}

// Broadcast delivers one message to every target in order, returning a
// per-target success map. A failed target never aborts the rest.
func (g *Gateway) Broadcast(ctx context.Context, msg Message, targets []registry.Target) BroadcastResult {
	payload := Format(msg)
	out := BroadcastResult{PerTarget: make(map[string]bool, len(targets))}
	for _, target := range targets {
		res := g.deliverPayload(ctx, payload, msg.ID, target)
		out.PerTarget[target.AgentID] = res.Success
		if res.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	return out
}

// record updates counters, remembers the last error, logs failures, and
// publishes a delivery event.
func (g *Gateway) record(res Result) {
	g.mu.Lock()
	cs, ok := g.stats[res.Channel]
	if !ok {
		cs = &channelStats{}
		g.stats[res.Channel] = cs
	}
	if res.Err != nil {
		g.lastErr = res.Err
	}
	g.mu.Unlock()

	cs.attempts.Add(1)
	if res.Success {
		cs.successes.Add(1)
	} else {
		cs.failures.Add(1)
		g.log.Error("delivery failed",
			"message_id", res.MessageID,
			"recipient", res.AgentID,
			"channel", res.Channel,
			"error", res.Err,
		)
	}

	if g.bus != nil {
		errStr := ""
		if res.Err != nil {
			errStr = res.Err.Error()
		}
		g.bus.Publish(events.TopicDelivery, events.DeliveryResultEvent{
			MessageID: res.MessageID,
			AgentID:   res.AgentID,
			Channel:   res.Channel,
			Success:   res.Success,
			Err:       errStr,
			Timestamp: time.Now().UTC(),
		})
	}
}

// Stats returns a snapshot of per-channel counters and the last error.
func (g *Gateway) Stats() (channels []ChannelStats, lastErr error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, cs := range g.stats {
		channels = append(channels, ChannelStats{
			Channel:   name,
			Attempts:  cs.attempts.Load(),
			Successes: cs.successes.Load(),
			Failures:  cs.failures.Load(),
		})
	}
	return channels, g.lastErr
}

// Health reports transport-dependency availability derived from the
// circuit breaker state, plus how many health checks have run.
func (g *Gateway) Health() (HealthStatus, int64) {
	checks := g.healthChecks.Add(1)

	if len(g.transports) == 0 {
		return HealthError, checks
	}
	switch g.breaker.State() {
	case gobreaker.StateOpen:
		return HealthUnhealthy, checks
	case gobreaker.StateHalfOpen:
		return HealthDegraded, checks
	}
	// Closed breaker with recent failures still counts as degraded.
	if g.breaker.Counts().ConsecutiveFailures > 0 {
		return HealthDegraded, checks
	}
	return HealthHealthy, checks
}
