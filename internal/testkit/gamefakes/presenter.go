package gamefakes

import (
	"context"
	"sync"

	"github.com/louisbranch/spinout/internal/game/domain"
	"github.com/louisbranch/spinout/internal/presenter"
)

// Render is one captured presenter invocation.
type Render struct {
	SessionID string
	View      presenter.View
	UIVersion uint64
}

// Presenter captures render calls for assertions.
type Presenter struct {
	mu      sync.Mutex
	renders []Render
	err     error
}

// NewPresenter constructs a Presenter fake.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// FailWith makes subsequent Render calls return err.
func (p *Presenter) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Renders returns the captured calls in order.
func (p *Presenter) Renders() []Render {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Render, len(p.renders))
	copy(out, p.renders)
	return out
}

// Views returns just the captured view names in order.
func (p *Presenter) Views() []presenter.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	views := make([]presenter.View, 0, len(p.renders))
	for _, r := range p.renders {
		views = append(views, r.View)
	}
	return views
}

func (p *Presenter) Render(_ context.Context, session domain.Session, view presenter.View) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = append(p.renders, Render{
		SessionID: session.ID,
		View:      view,
		UIVersion: session.UIVersion,
	})
	return p.err
}

var _ presenter.Presenter = (*Presenter)(nil)
