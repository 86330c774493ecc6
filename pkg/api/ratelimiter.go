package api

import (
	"context"
	"time"
)

// RequestKind separates cheap metadata reads from the work that actually
// costs something.  Imports and profile computations are heavy; they leave a
// cooldown behind so one client cannot fire uploads back to back.
type RequestKind int

const (
	RequestGeneral RequestKind = iota
	RequestHeavy
)

// RateLimiter serializes requests per client IP.  Each IP gets a queue
// goroutine of its own, all coordination is channels, no locks.
type RateLimiter struct {
	cooldown time.Duration
	submit   chan submission
}

// submission routes one ticket to its IP queue.
type submission struct {
	ip string
	t  ticket
}

// ticket is one caller waiting for its turn.  The grant channel is buffered
// so the queue goroutine never blocks on a caller that gave up.
type ticket struct {
	ctx   context.Context
	kind  RequestKind
	grant chan grant
}

type grant struct {
	done chan struct{}
	err  error
}

// Permit is one granted slot.  Release it when the handler is finished so
// the next queued request from the same IP may proceed.
type Permit struct {
	done chan struct{}
}

// Release is idempotent; a second call does nothing.
func (p *Permit) Release() {
	if p == nil || p.done == nil {
		return
	}
	close(p.done)
	p.done = nil
}

// NewRateLimiter starts the dispatcher with the given cooldown between
// heavy requests from one IP.
func NewRateLimiter(cooldown time.Duration) *RateLimiter {
	l := &RateLimiter{
		cooldown: cooldown,
		submit:   make(chan submission),
	}
	go l.dispatch()
	return l
}

// Acquire queues the caller behind earlier requests from the same IP and
// blocks until its turn or until ctx ends, whichever comes first.
func (l *RateLimiter) Acquire(ctx context.Context, ip string, kind RequestKind) (*Permit, error) {
	if l == nil {
		return nil, nil
	}
	t := ticket{ctx: ctx, kind: kind, grant: make(chan grant, 1)}
	select {
	case l.submit <- submission{ip: ip, t: t}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case g := <-t.grant:
		if g.err != nil {
			return nil, g.err
		}
		return &Permit{done: g.done}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatch fans submissions out to per-IP queues, creating queues on first
// contact.  Queues are kept for the process lifetime; the set of client IPs
// a map server sees is small.
func (l *RateLimiter) dispatch() {
	queues := make(map[string]chan ticket)
	for s := range l.submit {
		q, ok := queues[s.ip]
		if !ok {
			q = make(chan ticket)
			queues[s.ip] = q
			go l.drain(q)
		}
		select {
		case q <- s.t:
		case <-s.t.ctx.Done():
			s.t.grant <- grant{err: s.t.ctx.Err()}
		}
	}
}

// drain serves one IP's tickets in arrival order.  Heavy tickets sleep out
// whatever remains of the cooldown left by the previous heavy one.
func (l *RateLimiter) drain(tickets <-chan ticket) {
	var lastHeavy time.Time

	for t := range tickets {
		if t.ctx.Err() != nil {
			t.grant <- grant{err: t.ctx.Err()}
			continue
		}

		if t.kind == RequestHeavy && !lastHeavy.IsZero() {
			if wait := l.cooldown - time.Since(lastHeavy); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-t.ctx.Done():
					timer.Stop()
					t.grant <- grant{err: t.ctx.Err()}
					continue
				}
			}
		}

		done := make(chan struct{})
		t.grant <- grant{done: done}

		// A caller that abandoned its request never releases the permit;
		// its dead context unblocks the queue instead.
		select {
		case <-done:
		case <-t.ctx.Done():
		}

		if t.kind == RequestHeavy {
			lastHeavy = time.Now()
		}
	}
}
