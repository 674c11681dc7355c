package coordination

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristath/agentcoord/internal/delivery"
	"github.com/aristath/agentcoord/internal/events"
	"github.com/aristath/agentcoord/internal/registry"
	"github.com/aristath/agentcoord/internal/state"
)

// Start launches the background worker: one goroutine that drains the
// message queue and runs periodic maintenance in the same loop, preserving
// deterministic interleaving of delivery and maintenance.
func (e *Engine) Start(ctx context.Context) {
	go e.runLoop(ctx)
}

// Stop signals the worker to exit and waits for it to drain.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

// runLoop is the worker body. Each iteration pops from the queue with a
// short timeout, delivers any dequeued message per recipient, then runs
// maintenance: overdue active tasks become blocked and expired sessions
// are evicted. A panic in one iteration is recovered and followed by an
// exponential backoff sleep so a single bad message never kills the loop.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0 // never give up

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case msg := <-e.queue:
			if e.safeIteration(ctx, &msg) {
				bo.Reset()
			} else {
				e.sleepBackoff(ctx, bo)
			}
		case <-time.After(e.cfg.WorkerTimeout):
			if e.safeIteration(ctx, nil) {
				bo.Reset()
			} else {
				e.sleepBackoff(ctx, bo)
			}
		}
	}
}

func (e *Engine) sleepBackoff(ctx context.Context, bo *backoff.ExponentialBackOff) {
	select {
	case <-ctx.Done():
	case <-e.stop:
	case <-time.After(bo.NextBackOff()):
	}
}

// safeIteration runs one loop body, converting panics into a logged
// failure. Returns false when the iteration panicked.
func (e *Engine) safeIteration(ctx context.Context, msg *delivery.Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			e.log.Error("worker iteration panicked", "panic", r)
		}
	}()

	if msg != nil {
		e.routeMessage(ctx, *msg)
	}
	e.maintain()
	return true
}

// routeMessage resolves and delivers to each recipient independently: a
// failure for one recipient never aborts delivery to the others.
func (e *Engine) routeMessage(ctx context.Context, msg delivery.Message) {
	targets := make([]registry.Target, 0, len(msg.Recipients))
	for _, recipient := range msg.Recipients {
		target, err := e.gateway.ResolveTarget(recipient)
		if err != nil {
			e.log.Warn("target resolution failed",
				"message_id", msg.ID, "recipient", recipient, "error", err)
			continue
		}
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		return
	}

	result := e.gateway.Broadcast(ctx, msg, targets)
	e.log.Debug("message routed",
		"message_id", msg.ID,
		"delivered", result.SuccessCount,
		"failed", result.FailureCount,
	)
}

// maintain blocks overdue active tasks and evicts expired sessions.
func (e *Engine) maintain() {
	now := e.now().UTC()

	e.mu.Lock()
	var blocked []string
	for _, task := range e.tasks {
		if task.Status != state.StatusActive || task.DueAt == nil {
			continue
		}
		if now.After(*task.DueAt) {
			task.Status = state.StatusBlocked
			blocked = append(blocked, task.ID)
		}
	}

	var expired []*Session
	for id, session := range e.sessions {
		if now.After(session.EndAt) {
			expired = append(expired, session)
			delete(e.sessions, id)
		}
	}
	e.mu.Unlock()

	for _, id := range blocked {
		e.log.Warn("task blocked past due date", "task_id", id)
		e.publish(events.TopicTask, events.TaskStatusEvent{
			ID:        id,
			From:      string(state.StatusActive),
			To:        string(state.StatusBlocked),
			Trigger:   "overdue",
			Timestamp: now,
		})
	}
	for _, session := range expired {
		e.log.Info("session expired", "session_id", session.ID, "mode", session.Mode)
		e.publish(events.TopicTask, events.SessionExpiredEvent{
			ID:        session.ID,
			Mode:      string(session.Mode),
			Timestamp: now,
		})
	}
}
