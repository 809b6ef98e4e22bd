// Package assets owns the mapping from in-document image markers to their
// durable backend identities, and performs the upload side effect.
package assets

import (
	"context"
	"fmt"
	"html"
	"sync"

	"feedcompose/backend"
	"feedcompose/models"
	"feedcompose/utils"
)

// Store maintains the AssetMap for one composer session. Records are
// created only by completed uploads and removed only by Clear.
type Store struct {
	mu            sync.Mutex
	records       models.AssetMap
	uploader      backend.Uploader
	maxImageWidth uint
	log           *utils.Logger
}

// NewStore creates an empty store uploading through the given backend.
func NewStore(uploader backend.Uploader, maxImageWidth uint, log *utils.Logger) *Store {
	return &Store{
		records:       make(models.AssetMap),
		uploader:      uploader,
		maxImageWidth: maxImageWidth,
		log:           log.WithField("component", "assets"),
	}
}

// Upload sends the file to the backend and, on success, registers the
// returned download URL (HTML-unescaped) as the marker for the new record.
// On any failure the map is untouched and the caller decides about retry;
// the store never retries on its own.
func (s *Store) Upload(ctx context.Context, cc models.ComposerContext, data []byte, fileName, visibility string) (models.AssetRecord, string, error) {
	payload := data
	if optimized, err := utils.OptimizeImage(data, s.maxImageWidth); err == nil {
		payload = optimized
	} else {
		s.log.Warn("Image optimization failed for %s, uploading original: %v", fileName, err)
	}

	res, err := s.uploader.Upload(ctx, backend.UploadRequest{
		Data:       payload,
		FileName:   fileName,
		ContextID:  cc.ContextID,
		Visibility: visibility,
	})
	if err != nil {
		return models.AssetRecord{}, "", utils.UploadError(err).WithContext("file", fileName)
	}
	if res.DocumentID == "" || res.VersionID == "" || res.DownloadURL == "" {
		err := fmt.Errorf("upload response missing identifiers for %s", fileName)
		return models.AssetRecord{}, "", utils.UploadError(err)
	}

	record := models.AssetRecord{DocumentID: res.DocumentID, VersionID: res.VersionID}
	marker := html.UnescapeString(res.DownloadURL)

	s.mu.Lock()
	s.records[marker] = record
	s.mu.Unlock()

	s.log.Info("Uploaded asset %s as document=%s", fileName, record.DocumentID)
	return record, marker, nil
}

// Snapshot returns an immutable copy for reconciliation.
func (s *Store) Snapshot() models.AssetMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Clone()
}

// Restore replaces the map with entries recovered from a saved draft.
func (s *Store) Restore(m models.AssetMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(models.AssetMap, len(m))
	for k, v := range m {
		s.records[k] = v
	}
}

// Clear empties the map after a successful submission or field reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(models.AssetMap)
}

// Len returns the number of tracked assets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
