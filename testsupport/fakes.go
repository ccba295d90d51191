package testsupport

import (
	"context"
	"sync"

	"github.com/vitovidale/editia-orchestrator/domain"
)

// TextGenerator returns a canned script or error and records requests.
type TextGenerator struct {
	Text string
	Err  error

	mu       sync.Mutex
	Requests []domain.GenerateRequest
}

func (g *TextGenerator) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return "", g.Err
	}
	return g.Text, nil
}

// Calls reports how many generation requests were made.
func (g *TextGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

// RenderClient returns a canned job id and status, recording submissions.
type RenderClient struct {
	RenderID  string
	SubmitErr error
	JobStatus domain.RenderJobStatus
	StatusErr error
	// BeforeReturn runs after a successful submission is recorded and before
	// Submit returns, e.g. to deliver a webhook early.
	BeforeReturn func(ctx context.Context, job domain.RenderJob)

	mu           sync.Mutex
	Jobs         []domain.RenderJob
	StatusChecks int
}

func (r *RenderClient) Submit(ctx context.Context, job domain.RenderJob) (string, error) {
	r.mu.Lock()
	r.Jobs = append(r.Jobs, job)
	id, err, hook := r.RenderID, r.SubmitErr, r.BeforeReturn
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	if hook != nil {
		hook(ctx, job)
	}
	return id, nil
}

func (r *RenderClient) Status(_ context.Context, _ string) (domain.RenderJobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StatusChecks++
	if r.StatusErr != nil {
		return domain.RenderJobStatus{}, r.StatusErr
	}
	return r.JobStatus, nil
}

// Publisher records published render events.
type Publisher struct {
	Err error

	mu     sync.Mutex
	events []domain.RenderEvent
}

func (p *Publisher) PublishRenderEvent(_ context.Context, event domain.RenderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *Publisher) Events() []domain.RenderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RenderEvent(nil), p.events...)
}
