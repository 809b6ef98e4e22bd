package recipients

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcompose/models"
	"feedcompose/utils"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]models.RecipientCandidate
	err     error
	calls   []string
}

func (f *fakeSearcher) SearchRecipients(ctx context.Context, term string) ([]models.RecipientCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, term)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[term], nil
}

func newTestField() *Field {
	return NewField(models.FieldTo, 1, 200*time.Millisecond, utils.NewLogger(utils.ERROR))
}

func alice() models.RecipientCandidate {
	return models.RecipientCandidate{Value: "alice@example.com", Label: "Alice Adams <alice@example.com>", Icon: "standard:user"}
}

func TestStaleResultsAreDropped(t *testing.T) {
	f := newTestField()

	// Two keystrokes: "al" then "ali". The older response arrives last
	// and must be discarded.
	require.True(t, f.SetTerm("al"))
	require.True(t, f.SetTerm("ali"))

	f.ApplyResults("ali", []models.RecipientCandidate{alice()})
	f.ApplyResults("al", []models.RecipientCandidate{
		{Value: "albert@example.com", Label: "Albert"},
	})

	st := f.Snapshot()
	require.Len(t, st.Results, 1)
	assert.Equal(t, "alice@example.com", st.Results[0].Value)
	assert.True(t, st.Open)
}

func TestEmptyTermClosesDropdown(t *testing.T) {
	f := newTestField()
	f.SetTerm("al")
	f.ApplyResults("al", []models.RecipientCandidate{alice()})
	require.True(t, f.Snapshot().Open)

	assert.False(t, f.SetTerm("   "))
	st := f.Snapshot()
	assert.Empty(t, st.Results)
	assert.False(t, st.Open)
}

func TestSearchFailureShowsNoResults(t *testing.T) {
	f := newTestField()
	searcher := &fakeSearcher{err: assert.AnError}

	f.Search(context.Background(), "ali", searcher)

	st := f.Snapshot()
	assert.Empty(t, st.Results)
	assert.False(t, st.Open)
}

func TestSelectedCandidatesAreFilteredFromResults(t *testing.T) {
	f := newTestField()
	f.Select(alice())

	f.SetTerm("ali")
	f.ApplyResults("ali", []models.RecipientCandidate{
		alice(),
		{Value: "alina@example.com", Label: "Alina"},
	})

	st := f.Snapshot()
	require.Len(t, st.Results, 1)
	assert.Equal(t, "alina@example.com", st.Results[0].Value)
}

func TestSelectAppendsTokenAndResetsSearch(t *testing.T) {
	f := newTestField()
	f.SetTerm("ali")
	f.ApplyResults("ali", []models.RecipientCandidate{alice()})

	token := f.Select(alice())
	assert.Equal(t, "Alice Adams", token.Label)
	assert.Equal(t, "alice@example.com", token.AddressKey)

	st := f.Snapshot()
	require.Len(t, st.Tokens, 1)
	assert.Empty(t, st.Term)
	assert.Empty(t, st.Results)
	assert.False(t, st.Open)
}

func TestSelectWinsAgainstBlurTimer(t *testing.T) {
	f := NewField(models.FieldTo, 1, 20*time.Millisecond, utils.NewLogger(utils.ERROR))
	f.SetTerm("ali")
	f.ApplyResults("ali", []models.RecipientCandidate{alice()})

	f.Blur()
	f.Select(alice())
	time.Sleep(40 * time.Millisecond)

	st := f.Snapshot()
	require.Len(t, st.Tokens, 1)
	assert.False(t, st.Open)
}

func TestBlurClosesAfterDelay(t *testing.T) {
	f := NewField(models.FieldTo, 1, 10*time.Millisecond, utils.NewLogger(utils.ERROR))
	f.SetTerm("ali")
	f.ApplyResults("ali", []models.RecipientCandidate{alice()})
	require.True(t, f.Snapshot().Open)

	f.Blur()
	// Before expiry the dropdown is still open.
	assert.True(t, f.Snapshot().Open)

	assert.Eventually(t, func() bool {
		return !f.Snapshot().Open
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestRemoveToken(t *testing.T) {
	f := newTestField()
	f.Select(alice())

	assert.False(t, f.Remove("nobody@example.com"))
	assert.True(t, f.Remove("alice@example.com"))
	assert.False(t, f.Remove("alice@example.com"))
	assert.Empty(t, f.Tokens())
}

func TestFocusReissuesSearchForCurrentTerm(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RecipientCandidate{
		"ali": {alice()},
	}}
	f := newTestField()

	f.Search(context.Background(), "ali", searcher)
	f.Blur()
	f.Focus(context.Background(), searcher)

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	assert.Equal(t, []string{"ali", "ali"}, searcher.calls)
	assert.True(t, f.Snapshot().Open)
}

func TestFocusWithEmptyTermDoesNothing(t *testing.T) {
	searcher := &fakeSearcher{}
	f := newTestField()

	f.Focus(context.Background(), searcher)

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	assert.Empty(t, searcher.calls)
}

func TestAddressesPreserveInsertionOrder(t *testing.T) {
	f := newTestField()
	f.Select(models.RecipientCandidate{Value: "b@example.com", Label: "B"})
	f.Select(models.RecipientCandidate{Value: "a@example.com", Label: "A"})

	assert.Equal(t, []string{"b@example.com", "a@example.com"}, f.Addresses())
}
