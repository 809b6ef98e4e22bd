// Package drafts persists composer drafts through the durable key-value
// store, scoped per composer kind, record, and user.
package drafts

import (
	"encoding/json"
	"fmt"
	"time"

	"feedcompose/models"
	"feedcompose/storage"
	"feedcompose/utils"
)

// Store saves and restores one named draft per composer context.
type Store struct {
	kv  storage.KV
	log *utils.Logger
}

// NewStore creates a draft store over the given KV.
func NewStore(kv storage.KV, log *utils.Logger) *Store {
	return &Store{kv: kv, log: log.WithField("component", "drafts")}
}

// Key derives the storage key from an explicit composer context.
func Key(cc models.ComposerContext) string {
	return fmt.Sprintf("draft_%s_%s_%s", cc.Kind, cc.ContextID, cc.UserID)
}

// Save writes the record under the context's key, stamping it with the
// current time. It is called on every meaningful mutation; failures are
// logged and never surfaced, so callers treat it as fire-and-forget.
func (s *Store) Save(cc models.ComposerContext, rec models.DraftRecord) {
	rec.Timestamp = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		s.log.Error("Failed to serialize draft for %s: %v", Key(cc), err)
		return
	}
	if err := s.kv.Set(Key(cc), string(data)); err != nil {
		s.log.Error("Failed to save draft for %s: %v", Key(cc), utils.PersistenceError(err))
	}
}

// Restore reads the context's draft. Missing or malformed data yields
// (zero, false) with a diagnostic; malformed data is left in place.
func (s *Store) Restore(cc models.ComposerContext) (models.DraftRecord, bool) {
	raw, found, err := s.kv.Get(Key(cc))
	if err != nil {
		s.log.Error("Failed to read draft for %s: %v", Key(cc), err)
		return models.DraftRecord{}, false
	}
	if !found {
		return models.DraftRecord{}, false
	}
	var rec models.DraftRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Error("Failed to parse draft for %s: %v", Key(cc), utils.PersistenceError(err))
		return models.DraftRecord{}, false
	}
	return rec, true
}

// Clear writes the empty-equivalent record so a later Restore cannot
// resurrect already-sent content.
func (s *Store) Clear(cc models.ComposerContext) {
	s.Save(cc, models.DraftRecord{})
}
