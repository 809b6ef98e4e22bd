// Package recipients implements the per-field incremental search state
// machine for addressed recipient entry (To, Cc, Bcc).
package recipients

import (
	"context"
	"strings"
	"sync"
	"time"

	"feedcompose/backend"
	"feedcompose/models"
	"feedcompose/utils"
)

// State is an immutable snapshot of one field.
type State struct {
	Tokens  []models.RecipientToken     `json:"tokens"`
	Term    string                      `json:"term"`
	Results []models.RecipientCandidate `json:"results"`
	Open    bool                        `json:"open"`
}

// Field holds one recipient field's tokens and dropdown lifecycle. All
// mutation goes through its methods; results for superseded terms are
// dropped at application time rather than cancelling in-flight lookups.
type Field struct {
	mu         sync.Mutex
	kind       models.RecipientFieldKind
	tokens     []models.RecipientToken
	term       string
	results    []models.RecipientCandidate
	open       bool
	minTermLen int
	closeDelay time.Duration
	closeTimer *time.Timer
	log        *utils.Logger
}

// NewField creates an idle field.
func NewField(kind models.RecipientFieldKind, minTermLen int, closeDelay time.Duration, log *utils.Logger) *Field {
	if minTermLen < 1 {
		minTermLen = 1
	}
	return &Field{
		kind:       kind,
		minTermLen: minTermLen,
		closeDelay: closeDelay,
		log:        log.WithField("field", string(kind)),
	}
}

// SetTerm records a new term and reports whether a search should be
// issued. A trimmed-empty (or too short) term clears results and closes
// the dropdown.
func (f *Field) SetTerm(term string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.term = term
	trimmed := strings.TrimSpace(term)
	if len(trimmed) < f.minTermLen {
		f.results = nil
		f.open = false
		return false
	}
	return true
}

// ApplyResults installs candidates for a completed lookup. Only the
// response matching the field's current term is applied; anything else was
// superseded by newer keystrokes and is dropped. Candidates already
// present as tokens are filtered out.
func (f *Field) ApplyResults(term string, candidates []models.RecipientCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.term != term {
		f.log.Debug("Dropping stale search results for term %q (current %q)", term, f.term)
		return
	}
	filtered := f.filterKnown(candidates)
	f.results = filtered
	f.open = len(filtered) > 0
}

// Search runs the full term-change transition: record the term, perform
// the lookup, apply the result under the race guard. Lookup failures are
// logged and shown as no results.
func (f *Field) Search(ctx context.Context, term string, searcher backend.RecipientSearcher) {
	if !f.SetTerm(term) {
		return
	}
	candidates, err := searcher.SearchRecipients(ctx, strings.TrimSpace(term))
	if err != nil {
		f.log.Error("Recipient search failed: %v", utils.SearchError(err))
		candidates = nil
	}
	f.ApplyResults(term, candidates)
}

// Focus re-issues the search for an existing term instead of reusing
// stale cached results.
func (f *Field) Focus(ctx context.Context, searcher backend.RecipientSearcher) {
	f.mu.Lock()
	term := f.term
	f.mu.Unlock()
	if strings.TrimSpace(term) == "" {
		return
	}
	f.Search(ctx, term, searcher)
}

// Blur schedules the dropdown to close after the configured delay, giving
// a pointer-click on a candidate time to land first. On expiry the field
// closes unconditionally.
func (f *Field) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeTimer != nil {
		f.closeTimer.Stop()
	}
	f.closeTimer = time.AfterFunc(f.closeDelay, f.deferredClose)
}

func (f *Field) deferredClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

// Select appends exactly one token for the candidate, clears the term and
// results, and closes the dropdown. It runs synchronously, so it always
// wins against the deferred blur closure.
func (f *Field) Select(candidate models.RecipientCandidate) models.RecipientToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := candidate.Token()
	f.tokens = append(f.tokens, token)
	f.term = ""
	f.results = nil
	f.open = false
	return token
}

// AddToken appends a pre-built token (backend-supplied initial values).
// Any visible result for the same address is removed to keep the
// dropdown invariant.
func (f *Field) AddToken(token models.RecipientToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.results = f.filterKnown(f.results)
	if len(f.results) == 0 {
		f.open = false
	}
}

// Remove deletes the one token matching addressKey; absent keys are a
// no-op. Returns whether a token was removed.
func (f *Field) Remove(addressKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tokens {
		if t.AddressKey == addressKey {
			f.tokens = append(f.tokens[:i], f.tokens[i+1:]...)
			return true
		}
	}
	return false
}

// Reset drops all tokens and search state (successful send).
func (f *Field) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeTimer != nil {
		f.closeTimer.Stop()
		f.closeTimer = nil
	}
	f.tokens = nil
	f.term = ""
	f.results = nil
	f.open = false
}

// Tokens returns a copy of the selected tokens in insertion order.
func (f *Field) Tokens() []models.RecipientToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RecipientToken, len(f.tokens))
	copy(out, f.tokens)
	return out
}

// Addresses returns the address keys in insertion order.
func (f *Field) Addresses() []string {
	tokens := f.Tokens()
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.AddressKey
	}
	return out
}

// Snapshot returns the field's current state.
func (f *Field) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	tokens := make([]models.RecipientToken, len(f.tokens))
	copy(tokens, f.tokens)
	results := make([]models.RecipientCandidate, len(f.results))
	copy(results, f.results)
	return State{Tokens: tokens, Term: f.term, Results: results, Open: f.open}
}

// filterKnown removes candidates whose address already appears as a token.
// Callers hold f.mu.
func (f *Field) filterKnown(candidates []models.RecipientCandidate) []models.RecipientCandidate {
	if len(candidates) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(f.tokens))
	for _, t := range f.tokens {
		known[t.AddressKey] = struct{}{}
	}
	out := make([]models.RecipientCandidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := known[c.Value]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
