package assets

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"feedcompose/models"
)

// PasteCapture intercepts paste events for an active composer. When a
// clipboard image is found the editor's default handling must be
// suppressed so it cannot materialize its own unmanaged inline reference.
type PasteCapture struct {
	mu       sync.Mutex
	attached bool
}

// NewPasteCapture returns a detached capture.
func NewPasteCapture() *PasteCapture {
	return &PasteCapture{}
}

// Attach marks the capture active. Returns false if already attached, so
// composer re-activation cannot double-register the listener.
func (p *PasteCapture) Attach() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attached {
		return false
	}
	p.attached = true
	return true
}

// Detach deactivates the capture.
func (p *PasteCapture) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = false
}

// Attached reports the listener state.
func (p *PasteCapture) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// Capture scans clipboard items in order and selects the first image.
// The second return value is true only when an image was taken over; false
// means default paste handling (text and everything else) proceeds
// untouched.
func (p *PasteCapture) Capture(items []models.ClipboardItem) (models.PastedFile, bool) {
	if !p.Attached() {
		return models.PastedFile{}, false
	}
	for _, item := range items {
		if !strings.HasPrefix(item.MediaType, "image/") {
			continue
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = fmt.Sprintf("pasted_%d.%s", time.Now().UnixMilli(), ExtensionForMediaType(item.MediaType))
		}
		return models.PastedFile{
			Name:      name,
			MediaType: item.MediaType,
			Data:      item.Data,
		}, true
	}
	return models.PastedFile{}, false
}

// ExtensionForMediaType derives a file extension from an image media type,
// normalizing jpeg to jpg. Unparseable types fall back to png.
func ExtensionForMediaType(mediaType string) string {
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || subtype == "" {
		return "png"
	}
	if idx := strings.IndexAny(subtype, ";+"); idx >= 0 {
		subtype = subtype[:idx]
	}
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return "png"
	}
	if subtype == "jpeg" {
		return "jpg"
	}
	return subtype
}
