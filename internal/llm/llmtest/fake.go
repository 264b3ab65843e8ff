// Package llmtest provides scripted llm.Model fakes for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/xaenox/insight-bot/internal/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Response *llm.Response
	Err      error
}

// Text is a successful reply without citations.
func Text(s string) Reply {
	return Reply{Response: &llm.Response{Text: s}}
}

// Fail is a failed reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Model replays Replies in order and records every request. When the script
// runs out the last reply is repeated.
type Model struct {
	mu       sync.Mutex
	Replies  []Reply
	Requests []*llm.Request
}

func NewModel(replies ...Reply) *Model {
	return &Model{Replies: replies}
}

func (m *Model) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *req
	m.Requests = append(m.Requests, &cp)
	if len(m.Replies) == 0 {
		return nil, errors.New("llmtest: no scripted reply")
	}
	idx := len(m.Requests) - 1
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	r := m.Replies[idx]
	return r.Response, r.Err
}

// Calls returns the number of Generate invocations.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Request returns the i-th recorded request.
func (m *Model) Request(i int) *llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[i]
}

// Provider hands out the same Model for any key and records the keys used.
type Provider struct {
	mu    sync.Mutex
	Model llm.Model
	Err   error
	Keys  []string
}

func NewProvider(m llm.Model) *Provider {
	return &Provider{Model: m}
}

func (p *Provider) Connect(_ context.Context, apiKey string) (llm.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, apiKey)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Model, nil
}

// Connections returns the number of Connect calls.
func (p *Provider) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Keys)
}
