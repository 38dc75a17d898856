package mirror

import (
	"context"

	"github.com/ppiankov/wikimirror/internal/model"
)

// GetRedirectTarget returns where t redirects, or nil. Mirrored titles are
// answered from the remote redirect shadow table; other titles only have a
// target when they exist locally.
func (m *Mirror) GetRedirectTarget(ctx context.Context, t model.Title) (*model.Title, error) {
	if !m.CanMirror(ctx, t, true) {
		exists, err := m.host.PageExists(ctx, t)
		if err != nil || !exists {
			return nil, err
		}
		return m.host.RedirectTarget(ctx, t)
	}

	record, err := m.PageRecord(t)
	if err != nil || record == nil {
		return nil, err
	}
	return record.RedirectTarget(), nil
}

// RedirectHop is one followed redirect
type RedirectHop struct {
	From model.Title `json:"from"`
	To   model.Title `json:"to"`
}

// RedirectChain is the result of following redirects from a title
type RedirectChain struct {
	Hops []RedirectHop `json:"hops"`
	// Final is the last title reached before the chain ended or looped
	Final model.Title `json:"final"`
	// Cycle is set when a hop led back to a title already in the chain
	Cycle bool `json:"cycle"`
}

// Redirects maps each redirecting title key to its hop
func (c *RedirectChain) Redirects() map[string]RedirectHop {
	out := make(map[string]RedirectHop, len(c.Hops))
	for _, hop := range c.Hops {
		out[hop.From.Key()] = hop
	}
	return out
}

// ResolveRedirects follows redirects from t until a non-redirect or a title
// already seen in the chain
func (m *Mirror) ResolveRedirects(ctx context.Context, t model.Title) (*RedirectChain, error) {
	chain := &RedirectChain{Final: t}
	seen := map[string]bool{t.Key(): true}

	current := t
	for {
		target, err := m.GetRedirectTarget(ctx, current)
		if err != nil {
			return chain, err
		}
		if target == nil {
			return chain, nil
		}

		chain.Hops = append(chain.Hops, RedirectHop{From: current, To: *target})
		if seen[target.Key()] {
			chain.Cycle = true
			m.logger.Debug().Str("title", t.Key()).Str("repeat", target.Key()).Msg("redirect cycle")
			return chain, nil
		}
		seen[target.Key()] = true
		current = *target
		chain.Final = current
	}
}
