package confirmation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// Gateway implements ports.ConfirmationGateway. Each session holds at most one
// pending request; sessions never contend with each other.
type Gateway struct {
	timeout  time.Duration
	now      func() time.Time
	log      ports.Logger
	sessions sync.Map // session id -> *pending
	byID     sync.Map // request id -> *pending
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger attaches a logger for lifecycle events.
func WithLogger(log ports.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// NewGateway builds a gateway whose requests time out after timeout.
func NewGateway(timeout time.Duration, opts ...Option) *Gateway {
	if timeout <= 0 {
		timeout = domain.DefaultConfirmationTimeout
	}
	g := &Gateway{timeout: timeout, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type pending struct {
	req  domain.ConfirmationRequest
	mu   sync.Mutex
	st   domain.ConfirmationState
	done chan domain.Decision
}

// resolve moves the request out of PENDING. Only the first call wins.
func (p *pending) resolve(d domain.Decision) bool {
	if d != domain.DecisionApproved && d != domain.DecisionTimedOut {
		d = domain.DecisionDenied
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := domain.StateFor(d)
	if !p.st.CanTransitionTo(next) {
		return false
	}
	p.st = next
	p.done <- d
	return true
}

// Request presents a confirmation and blocks until it is resolved.
func (g *Gateway) Request(ctx context.Context, sessionID string, calls []domain.ToolCall, assessment domain.RiskAssessment, renderer ports.PromptRenderer) (domain.Decision, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required: %w", domain.ErrValidation)
	}
	if assessment.Blocked {
		return "", fmt.Errorf("blocked operations cannot be confirmed: %w", domain.ErrValidation)
	}
	if !assessment.RequiresConfirmation {
		return "", fmt.Errorf("assessment does not require confirmation: %w", domain.ErrValidation)
	}
	if renderer == nil {
		return "", fmt.Errorf("no decision source configured: %w", domain.ErrValidation)
	}

	created := g.now()
	p := &pending{
		req: domain.ConfirmationRequest{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			ToolCalls:  calls,
			Assessment: assessment,
			CreatedAt:  created,
			ExpiresAt:  created.Add(g.timeout),
		},
		st:   domain.ConfirmationPending,
		done: make(chan domain.Decision, 1),
	}
	if _, loaded := g.sessions.LoadOrStore(sessionID, p); loaded {
		return "", fmt.Errorf("session %s: %w", sessionID, domain.ErrConcurrentConfirmation)
	}
	g.byID.Store(p.req.ID, p)
	defer func() {
		g.byID.Delete(p.req.ID)
		g.sessions.CompareAndDelete(sessionID, p)
	}()
	g.info("confirmation requested", p.req, "")

	presentCtx, stopPresenting := context.WithCancel(ctx)
	var presenter sync.WaitGroup
	presenter.Add(1)
	go func() {
		defer presenter.Done()
		if err := renderer.Present(presentCtx, p.req, func(d domain.Decision) { p.resolve(d) }); err != nil && presentCtx.Err() == nil {
			g.warn("confirmation renderer failed", p.req, err)
			p.resolve(domain.DecisionDenied)
		}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var decision domain.Decision
	select {
	case decision = <-p.done:
	case <-timer.C:
		decision = g.settle(p, domain.DecisionTimedOut)
	case <-ctx.Done():
		decision = g.settle(p, domain.DecisionDenied)
	}
	stopPresenting()
	presenter.Wait()

	g.info("confirmation resolved", p.req, decision)
	return decision, nil
}

// settle resolves p with d unless another decision landed first, and returns
// whichever decision won.
func (g *Gateway) settle(p *pending, d domain.Decision) domain.Decision {
	p.resolve(d)
	return <-p.done
}

// Resolve delivers a decision for a pending request.
func (g *Gateway) Resolve(id string, decision domain.Decision) error {
	if decision != domain.DecisionApproved && decision != domain.DecisionDenied {
		return fmt.Errorf("decision %q: %w", decision, domain.ErrValidation)
	}
	value, ok := g.byID.Load(id)
	if !ok {
		return fmt.Errorf("confirmation %s: %w", id, domain.ErrNotFound)
	}
	if !value.(*pending).resolve(decision) {
		return fmt.Errorf("confirmation %s already resolved: %w", id, domain.ErrValidation)
	}
	return nil
}

// Cancel denies a pending request.
func (g *Gateway) Cancel(id string) error {
	return g.Resolve(id, domain.DecisionDenied)
}

// Pending lists open requests, oldest first.
func (g *Gateway) Pending() []domain.ConfirmationRequest {
	var out []domain.ConfirmationRequest
	g.byID.Range(func(_, value any) bool {
		p := value.(*pending)
		p.mu.Lock()
		open := p.st == domain.ConfirmationPending
		p.mu.Unlock()
		if open {
			out = append(out, p.req)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (g *Gateway) info(msg string, req domain.ConfirmationRequest, decision domain.Decision) {
	if g.log == nil {
		return
	}
	fields := map[string]interface{}{
		"confirmation": req.ID,
		"session":      req.SessionID,
		"risk":         string(req.Assessment.Level),
	}
	if decision != "" {
		fields["decision"] = string(decision)
	}
	g.log.Info(msg, fields)
}

func (g *Gateway) warn(msg string, req domain.ConfirmationRequest, err error) {
	if g.log == nil {
		return
	}
	g.log.Warn(msg, map[string]interface{}{"confirmation": req.ID, "error": err.Error()})
}

var _ ports.ConfirmationGateway = (*Gateway)(nil)
