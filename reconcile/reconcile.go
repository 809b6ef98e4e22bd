// Package reconcile transforms a composed HTML document into its
// submission-ready form, rewriting editor-rendered image references to
// stable asset tokens. All substring and regex work on the document lives
// behind this package so the representation could later become a tree
// without touching callers.
package reconcile

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"feedcompose/backend"
	"feedcompose/models"
	"feedcompose/utils"
)

// assetToken is the canonical backend-addressable reference for an asset.
func assetToken(documentID string) string {
	return "asset://" + documentID
}

var dataImageRe = regexp.MustCompile(`src=["'](data:image/(png|jpeg|jpg|gif|webp);base64,([^"']+))["']`)

// Result is a submission-ready body plus the deduplicated identifiers of
// every asset it references.
type Result struct {
	FinalBody string
	AssetIDs  []string
}

// Reconciler rewrites documents against an asset snapshot. Inline base64
// images discovered during reconciliation are uploaded through the backend
// directly; they belong to the submission, not to the composer's live map.
type Reconciler struct {
	uploader backend.Uploader
	log      *utils.Logger
}

// New creates a reconciler uploading stray inline images via the backend.
func New(uploader backend.Uploader, log *utils.Logger) *Reconciler {
	return &Reconciler{
		uploader: uploader,
		log:      log.WithField("component", "reconcile"),
	}
}

// Reconcile substitutes known markers, extracts inline base64 images, and
// unions the referenced identifiers with the explicit attachment IDs.
// It never fails as a whole: stale markers are skipped and individual
// base64 upload failures leave their data URI in place.
func (r *Reconciler) Reconcile(ctx context.Context, cc models.ComposerContext, visibility, body string, snapshot models.AssetMap, explicitIDs []string) Result {
	var referenced []string

	body, referenced = substituteMarkers(body, snapshot, referenced)

	body, referenced = r.extractInlineImages(ctx, cc, visibility, body, referenced)

	referenced = append(referenced, explicitIDs...)

	return Result{FinalBody: body, AssetIDs: dedup(referenced)}
}

// substituteMarkers applies the three matching strategies per asset,
// first match wins. An asset whose marker matches nothing is stale and
// contributes no identifier.
func substituteMarkers(body string, snapshot models.AssetMap, ids []string) (string, []string) {
	for marker, record := range snapshot {
		token := assetToken(record.DocumentID)

		// 1: exact literal marker
		if strings.Contains(body, marker) {
			body = strings.ReplaceAll(body, marker, token)
			ids = append(ids, record.DocumentID)
			continue
		}

		// 2: marker as it survives HTML serialization
		if encoded := strings.ReplaceAll(marker, "&", "&amp;"); strings.Contains(body, encoded) {
			body = strings.ReplaceAll(body, encoded, token)
			ids = append(ids, record.DocumentID)
			continue
		}

		// 3: any src attribute still carrying the version identifier
		if record.VersionID == "" {
			continue
		}
		srcRe := regexp.MustCompile(`(?i)(src=["'])([^"']*` + regexp.QuoteMeta(record.VersionID) + `[^"']*)(["'])`)
		replaced := srcRe.ReplaceAllString(body, "${1}"+token+"${3}")
		if replaced != body {
			body = replaced
			ids = append(ids, record.DocumentID)
		}
	}
	return body, ids
}

// extractInlineImages uploads each distinct base64 data URI concurrently
// and swaps successful ones for asset tokens. The final body is assembled
// only after every upload settles.
func (r *Reconciler) extractInlineImages(ctx context.Context, cc models.ComposerContext, visibility, body string, ids []string) (string, []string) {
	if !strings.Contains(body, "data:image") {
		return body, ids
	}

	matches := dataImageRe.FindAllStringSubmatch(body, -1)
	type inline struct {
		uri     string
		subtype string
		payload string
	}
	seen := make(map[string]struct{}, len(matches))
	distinct := make([]inline, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		distinct = append(distinct, inline{uri: m[1], subtype: m[2], payload: m[3]})
	}

	uploaded := make([]string, len(distinct)) // document ID per entry, "" on failure
	var wg sync.WaitGroup
	for i, img := range distinct {
		wg.Add(1)
		go func(i int, img inline) {
			defer wg.Done()
			data, err := base64.StdEncoding.DecodeString(img.payload)
			if err != nil {
				r.log.Error("Inline image decode failed: %v", err)
				return
			}
			ext := img.subtype
			if ext == "jpeg" {
				ext = "jpg"
			}
			res, err := r.uploader.Upload(ctx, backend.UploadRequest{
				Data:       data,
				FileName:   fmt.Sprintf("pasted_%d.%s", time.Now().UnixMilli(), ext),
				ContextID:  cc.ContextID,
				Visibility: visibility,
			})
			if err != nil {
				r.log.Error("Inline image upload failed: %v", err)
				return
			}
			if res.DocumentID == "" {
				r.log.Error("Inline image upload returned no document id")
				return
			}
			uploaded[i] = res.DocumentID
		}(i, img)
	}
	wg.Wait()

	for i, img := range distinct {
		if uploaded[i] == "" {
			continue // degraded: the raw data URI stays in the body
		}
		body = strings.ReplaceAll(body, img.uri, assetToken(uploaded[i]))
		ids = append(ids, uploaded[i])
	}
	return body, ids
}

// dedup keeps first occurrences; the result has set semantics.
func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
