package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/state"
)

// Masked replaces redacted values.
const Masked = "***"

type redactionMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks, before saving, the
// session state of every object whose name matches one of the patterns, and
// the value of every plain map key that matches. History diffs are masked
// too. Masking is one-way: loaded snapshots keep the mask.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	out := snap
	out.CurrentState = m.mask(snap.CurrentState)
	out.UndoHistory = m.maskEntries(snap.UndoHistory)
	out.RedoHistory = m.maskEntries(snap.RedoHistory)
	return m.next.Save(ctx, sessionID, out)
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) maskEntries(entries []domain.LogEntry) []domain.LogEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.LogEntry, len(entries))
	for i, e := range entries {
		e.Forward = m.mask(e.Forward)
		e.Backward = m.mask(e.Backward)
		out[i] = e
	}
	return out
}

func (m *redactionMiddleware) matches(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// mask returns a masked copy of x; x itself is never modified.
func (m *redactionMiddleware) mask(x any) any {
	if ds, ok := state.AsDynamicState(x); ok {
		if ds.SessionState != nil && m.matches(ds.ObjectName) {
			return state.NewDynamicState(ds.ObjectName, ds.ClassName, Masked)
		}
		return state.NewDynamicState(ds.ObjectName, ds.ClassName, m.mask(ds.SessionState))
	}
	if xs, ok := state.Slice(x); ok {
		out := make([]any, len(xs))
		for i, v := range xs {
			out[i] = m.mask(v)
		}
		return out
	}
	if obj, ok := x.(map[string]any); ok {
		out := make(map[string]any, len(obj))
		for k, v := range obj {
			if m.matches(k) {
				out[k] = Masked
				continue
			}
			out[k] = m.mask(v)
		}
		return out
	}
	return x
}
