package models

import (
	"fmt"
	"time"
)

// ComposerKind identifies which composer flavor a session belongs to.
type ComposerKind string

const (
	KindPost  ComposerKind = "post"
	KindEmail ComposerKind = "email"
)

// ParseComposerKind validates a kind string coming from a route parameter.
func ParseComposerKind(s string) (ComposerKind, error) {
	switch ComposerKind(s) {
	case KindPost:
		return KindPost, nil
	case KindEmail:
		return KindEmail, nil
	}
	return "", fmt.Errorf("unknown composer kind %q", s)
}

// Visibility scopes for feed posts and uploaded assets.
const (
	VisibilityAllUsers = "AllUsers"
	VisibilityInternal = "InternalUsers"
)

// ComposerContext identifies one composer instance. It is always passed
// explicitly; components never read user or record identity from globals.
type ComposerContext struct {
	Kind      ComposerKind `json:"kind"`
	ContextID string       `json:"context_id"`
	UserID    string       `json:"user_id"`
}

// Validate checks that the context carries enough identity to key a draft.
func (c ComposerContext) Validate() error {
	if c.Kind != KindPost && c.Kind != KindEmail {
		return fmt.Errorf("invalid composer kind %q", c.Kind)
	}
	if c.ContextID == "" {
		return fmt.Errorf("missing context id")
	}
	if c.UserID == "" {
		return fmt.Errorf("missing user id")
	}
	return nil
}

// AssetRecord is the durable backend identity of one uploaded asset.
// Records are never mutated after creation.
type AssetRecord struct {
	DocumentID string `json:"document_id"`
	VersionID  string `json:"version_id"`
}

// AssetMap maps an in-document marker (the unescaped download URL the
// editor rendered after an upload) to its AssetRecord.
type AssetMap map[string]AssetRecord

// Clone returns an independent copy of the map.
func (m AssetMap) Clone() AssetMap {
	if m == nil {
		return nil
	}
	out := make(AssetMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Attachment is one explicitly attached file on a composer.
type Attachment struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
}

// DraftRecord is the persisted shape of a composer draft.
type DraftRecord struct {
	Body        string       `json:"body"`
	AssetMap    AssetMap     `json:"asset_map,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Empty reports whether the record is the empty-equivalent written after a
// successful submission.
func (d DraftRecord) Empty() bool {
	return d.Body == "" && len(d.AssetMap) == 0 && len(d.Attachments) == 0
}

// ClipboardItem is one entry of a paste event, in clipboard order.
type ClipboardItem struct {
	MediaType string `json:"media_type"`
	Name      string `json:"name"`
	Data      []byte `json:"data"`
}

// PastedFile is a synthetic file built from an intercepted clipboard image.
type PastedFile struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}
