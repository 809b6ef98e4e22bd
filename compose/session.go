// Package compose orchestrates one composer session per user and record:
// draft recovery, pre-fill seeding, body editing, inline images,
// attachments, recipient fields and final submission.
package compose

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"feedcompose/assets"
	"feedcompose/backend"
	"feedcompose/config"
	"feedcompose/drafts"
	"feedcompose/models"
	"feedcompose/recipients"
	"feedcompose/reconcile"
	"feedcompose/utils"
)

// Event names published to the session owner's event stream.
const (
	EventImageInserted = "composer:image_inserted"
	EventSubmitted     = "composer:submitted"
)

// Publisher delivers a session event to one user's subscribers.
type Publisher interface {
	Publish(userID, event string, payload interface{})
}

// Session is the authoritative state of one open composer. All exported
// methods are safe for concurrent use.
type Session struct {
	mu  sync.Mutex
	cc  models.ComposerContext
	cfg *config.Config

	client     backend.Client
	assets     *assets.Store
	paste      *assets.PasteCapture
	reconciler *reconcile.Reconciler
	drafts     *drafts.Store
	fields     map[models.RecipientFieldKind]*recipients.Field
	events     Publisher
	log        *utils.Logger

	body        string
	subject     string
	senderID    string
	visibility  string
	signature   string
	inReplyTo   string
	attachments []models.Attachment

	senders    []backend.Option
	quickTexts []backend.QuickText
	templates  []backend.Option
}

// NewSession wires a session's sub-components. Open must be called before
// the session is served.
func NewSession(cc models.ComposerContext, cfg *config.Config, client backend.Client, draftStore *drafts.Store, events Publisher, log *utils.Logger) *Session {
	slog := log.WithFields(map[string]interface{}{
		"kind":    string(cc.Kind),
		"context": cc.ContextID,
	})
	closeDelay := time.Duration(cfg.Recipients.BlurCloseDelayMS) * time.Millisecond
	fields := map[models.RecipientFieldKind]*recipients.Field{
		models.FieldTo:  recipients.NewField(models.FieldTo, cfg.Recipients.MinTermLength, closeDelay, slog),
		models.FieldCc:  recipients.NewField(models.FieldCc, cfg.Recipients.MinTermLength, closeDelay, slog),
		models.FieldBcc: recipients.NewField(models.FieldBcc, cfg.Recipients.MinTermLength, closeDelay, slog),
	}
	return &Session{
		cc:         cc,
		cfg:        cfg,
		client:     client,
		assets:     assets.NewStore(client, cfg.Uploads.MaxImageWidth, slog),
		paste:      assets.NewPasteCapture(),
		reconciler: reconcile.New(client, slog),
		drafts:     draftStore,
		fields:     fields,
		events:     events,
		log:        slog,
		visibility: models.VisibilityAllUsers,
	}
}

// Open restores any saved draft, then seeds the composer from the backend.
// A restored draft always wins over seeded content; every seed failure is
// logged and the composer opens usable regardless.
func (s *Session) Open(ctx context.Context) error {
	if err := s.cc.Validate(); err != nil {
		return utils.ValidationError("error_invalid_context", err)
	}

	restored := s.restoreDraft()
	s.paste.Attach()

	var wg sync.WaitGroup
	if s.cc.Kind == models.KindEmail {
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.seedSenders(ctx)
		}()
		go func() {
			defer wg.Done()
			s.seedSignature(ctx)
		}()
		go func() {
			defer wg.Done()
			s.seedReplyContext(ctx, restored)
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.seedQuickTexts(ctx)
	}()
	go func() {
		defer wg.Done()
		s.seedTemplates(ctx)
	}()
	wg.Wait()
	return nil
}

// restoreDraft loads the persisted draft into the session, if any.
func (s *Session) restoreDraft() bool {
	rec, ok := s.drafts.Restore(s.cc)
	if !ok || rec.Empty() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = rec.Body
	s.attachments = rec.Attachments
	if s.cc.Kind == models.KindPost {
		s.assets.Restore(rec.AssetMap)
	}
	s.log.Info("Restored draft from %s", rec.Timestamp.Format(time.RFC3339))
	return true
}

func (s *Session) seedSenders(ctx context.Context) {
	senders, err := s.client.SenderOptions(ctx)
	if err != nil {
		s.log.Warn("Failed to load sender options: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders = senders
	if s.senderID != "" || len(senders) == 0 {
		return
	}
	s.senderID = senders[0].Value
	preferred := s.cfg.Compose.DefaultSenderAddress
	if preferred == "" {
		preferred = "support@"
	}
	for _, opt := range senders {
		if strings.Contains(strings.ToLower(opt.Label), strings.ToLower(preferred)) ||
			strings.Contains(strings.ToLower(opt.Value), strings.ToLower(preferred)) {
			s.senderID = opt.Value
			break
		}
	}
}

// seedSignature applies the user's signature only to an otherwise-empty
// body, so a restored draft is never overwritten.
func (s *Session) seedSignature(ctx context.Context) {
	sig, err := s.client.UserSignature(ctx)
	if err != nil {
		s.log.Warn("Failed to load signature: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signature = sig
	if sig == "" || s.body != "" {
		return
	}
	s.body = "<p><br></p><p>" + strings.ReplaceAll(sig, "<br>", "</p><p>") + "</p>"
	s.saveDraftLocked()
}

func (s *Session) seedQuickTexts(ctx context.Context) {
	qts, err := s.client.QuickTexts(ctx)
	if err != nil {
		s.log.Warn("Failed to load quick texts: %v", err)
		return
	}
	s.mu.Lock()
	s.quickTexts = qts
	s.mu.Unlock()
}

func (s *Session) seedTemplates(ctx context.Context) {
	tpls, err := s.client.Templates(ctx, s.cc.ContextID)
	if err != nil {
		s.log.Warn("Failed to load templates: %v", err)
		return
	}
	s.mu.Lock()
	s.templates = tpls
	s.mu.Unlock()
}

// seedReplyContext pre-fills recipients, subject and reply threading for an
// email composer. Restored drafts keep their own subject and recipients.
func (s *Session) seedReplyContext(ctx context.Context, restored bool) {
	iv, err := s.client.InitialValues(ctx, s.cc.ContextID)
	if err != nil {
		s.log.Warn("Failed to load initial values: %v", err)
	} else if !restored {
		if iv.ContactEmail != "" && len(s.fields[models.FieldTo].Tokens()) == 0 {
			s.fields[models.FieldTo].AddToken(models.RecipientCandidate{
				Value: iv.ContactEmail,
				Label: iv.ContactName,
			}.Token())
		}
		if iv.CurrentUserEmail != "" && len(s.fields[models.FieldBcc].Tokens()) == 0 {
			s.fields[models.FieldBcc].AddToken(models.RecipientCandidate{
				Value: iv.CurrentUserEmail,
				Label: iv.CurrentUserName,
			}.Token())
		}
		s.mu.Lock()
		if s.subject == "" {
			s.subject = iv.Subject
		}
		s.mu.Unlock()
	}

	orig, err := s.client.OriginalMessage(ctx, s.cc.ContextID)
	if err != nil {
		s.log.Warn("Failed to load original message: %v", err)
		return
	}
	if !orig.HasContent {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inReplyTo = orig.MessageID
	if s.subject == "" && orig.Subject != "" {
		s.subject = "RE: " + orig.Subject
	}
}

// SetBody replaces the body and persists the draft.
func (s *Session) SetBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
	s.saveDraftLocked()
}

// SetSubject replaces the subject line.
func (s *Session) SetSubject(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
}

// SetSender selects one of the loaded sender options.
func (s *Session) SetSender(senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range s.senders {
		if opt.Value == senderID {
			s.senderID = senderID
			return nil
		}
	}
	return utils.ValidationError("error_unknown_sender", fmt.Errorf("sender %q not offered", senderID))
}

// SetVisibility changes the visibility scope applied to the post and to
// every upload from here on.
func (s *Session) SetVisibility(visibility string) error {
	if visibility != models.VisibilityAllUsers && visibility != models.VisibilityInternal {
		return utils.ValidationError("error_unknown_visibility", fmt.Errorf("visibility %q", visibility))
	}
	s.mu.Lock()
	s.visibility = visibility
	s.mu.Unlock()
	return nil
}

// ApplyQuickText appends the snippet's message to the body and persists
// the draft.
func (s *Session) ApplyQuickText(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, qt := range s.quickTexts {
		if qt.Value == id {
			s.body += qt.Message
			s.saveDraftLocked()
			return nil
		}
	}
	return utils.ValidationError("error_unknown_quicktext", fmt.Errorf("quick text %q not loaded", id))
}

// ApplyTemplate renders a stored template into the body, replacing it
// wholesale. The signature, if any, is re-appended after the rendered
// content. On failure the body is left untouched.
func (s *Session) ApplyTemplate(ctx context.Context, templateID string) error {
	res, err := s.client.RenderTemplate(ctx, backend.TemplateRequest{
		TemplateID:       templateID,
		SubjectContextID: s.cc.ContextID,
		BodyContextID:    s.cc.ContextID,
	})
	if err != nil {
		return utils.TemplateError(err).WithContext("template_id", templateID)
	}
	body := utils.SanitizeComposerHTML(res.HTMLBody)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signature != "" {
		body += "<br><br>" + s.signature
	}
	s.body = body
	s.saveDraftLocked()
	return nil
}

// InsertImage uploads image data and splices the resulting marker into the
// body as an img element followed by an empty paragraph for the caret.
func (s *Session) InsertImage(ctx context.Context, data []byte, fileName string) (models.AssetRecord, error) {
	if s.cc.ContextID == "" {
		return models.AssetRecord{}, utils.ValidationError("error_image_context_required", fmt.Errorf("no record context"))
	}
	if int64(len(data)) > s.cfg.Uploads.MaxBytes {
		return models.AssetRecord{}, utils.ValidationError("error_file_too_large", fmt.Errorf("%d bytes", len(data)))
	}
	s.mu.Lock()
	visibility := s.visibility
	s.mu.Unlock()

	record, marker, err := s.assets.Upload(ctx, s.cc, data, fileName, visibility)
	if err != nil {
		return models.AssetRecord{}, err
	}

	img := fmt.Sprintf(`<p><img src="%s" alt="%s" style="max-width:100%%; height:auto;"></p><p><br></p>`, marker, fileName)
	s.mu.Lock()
	s.body += img
	s.saveDraftLocked()
	s.mu.Unlock()

	if s.events != nil {
		s.events.Publish(s.cc.UserID, EventImageInserted, map[string]string{
			"document_id": record.DocumentID,
			"name":        fileName,
		})
	}
	return record, nil
}

// HandlePaste inspects clipboard items and, when an image is found,
// uploads and inserts it. The returned flag reports whether the paste was
// intercepted; a false return means the default paste should proceed.
func (s *Session) HandlePaste(ctx context.Context, items []models.ClipboardItem) (bool, error) {
	if !s.paste.Attached() {
		return false, nil
	}
	file, ok := s.paste.Capture(items)
	if !ok {
		return false, nil
	}
	_, err := s.InsertImage(ctx, file.Data, file.Name)
	return true, err
}

// AddAttachment uploads a file as an explicit attachment. Attachments live
// beside the body and never enter the inline asset map.
func (s *Session) AddAttachment(ctx context.Context, data []byte, fileName string) (models.Attachment, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || !strings.Contains(s.cfg.Uploads.AcceptedExtensions, ext) {
		return models.Attachment{}, utils.ValidationError("error_file_type", fmt.Errorf("extension %q not accepted", ext))
	}
	if int64(len(data)) > s.cfg.Uploads.MaxBytes {
		return models.Attachment{}, utils.ValidationError("error_file_too_large", fmt.Errorf("%d bytes", len(data)))
	}
	s.mu.Lock()
	visibility := s.visibility
	s.mu.Unlock()

	res, err := s.client.Upload(ctx, backend.UploadRequest{
		Data:       data,
		FileName:   fileName,
		ContextID:  s.cc.ContextID,
		Visibility: visibility,
	})
	if err != nil {
		return models.Attachment{}, utils.UploadError(err).WithContext("file", fileName)
	}
	att := models.Attachment{DocumentID: res.DocumentID, Name: fileName}
	s.mu.Lock()
	s.attachments = append(s.attachments, att)
	s.saveDraftLocked()
	s.mu.Unlock()
	return att, nil
}

// RemoveAttachment drops the attachment with the given document id.
func (s *Session) RemoveAttachment(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, att := range s.attachments {
		if att.DocumentID == documentID {
			s.attachments = append(s.attachments[:i], s.attachments[i+1:]...)
			s.saveDraftLocked()
			return true
		}
	}
	return false
}

// Field returns the recipient field of the given kind.
func (s *Session) Field(kind models.RecipientFieldKind) *recipients.Field {
	return s.fields[kind]
}

// SearchRecipients runs the term-change transition on one field.
func (s *Session) SearchRecipients(ctx context.Context, kind models.RecipientFieldKind, term string) {
	s.fields[kind].Search(ctx, term, s.client)
}

// FocusRecipients re-issues the search for a field's current term.
func (s *Session) FocusRecipients(ctx context.Context, kind models.RecipientFieldKind) {
	s.fields[kind].Focus(ctx, s.client)
}

// CanSubmit reports whether the composer satisfies the submit gate: a post
// needs visible body content, an email needs at least one To recipient and
// a non-blank subject.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	body := s.body
	subject := s.subject
	s.mu.Unlock()
	switch s.cc.Kind {
	case models.KindEmail:
		return len(s.fields[models.FieldTo].Tokens()) > 0 && strings.TrimSpace(subject) != ""
	default:
		return utils.HasVisibleContent(body)
	}
}

// Submit reconciles the body and hands the finished message to the
// backend. On failure all composer state is retained for retry; on success
// the composer resets to its empty state and the draft is cleared.
func (s *Session) Submit(ctx context.Context) error {
	if !s.CanSubmit() {
		return utils.ValidationError("error_not_ready", fmt.Errorf("submit gate not satisfied"))
	}

	s.mu.Lock()
	body := s.body
	subject := s.subject
	senderID := s.senderID
	visibility := s.visibility
	inReplyTo := s.inReplyTo
	attachmentIDs := make([]string, len(s.attachments))
	for i, att := range s.attachments {
		attachmentIDs[i] = att.DocumentID
	}
	s.mu.Unlock()

	var snapshot models.AssetMap
	if s.cc.Kind == models.KindPost {
		snapshot = s.assets.Snapshot()
	}
	res := s.reconciler.Reconcile(ctx, s.cc, visibility, body, snapshot, attachmentIDs)

	var err error
	switch s.cc.Kind {
	case models.KindEmail:
		err = s.client.SendEmail(ctx, backend.SendEmailRequest{
			ContextID: s.cc.ContextID,
			SenderID:  senderID,
			To:        s.fields[models.FieldTo].Addresses(),
			Cc:        s.fields[models.FieldCc].Addresses(),
			Bcc:       s.fields[models.FieldBcc].Addresses(),
			Subject:   subject,
			HTMLBody:  res.FinalBody,
			AssetIDs:  res.AssetIDs,
			InReplyTo: inReplyTo,
		})
	default:
		err = s.client.PostFeedItem(ctx, backend.PostRequest{
			ContextID:  s.cc.ContextID,
			Body:       res.FinalBody,
			Visibility: visibility,
			AssetIDs:   res.AssetIDs,
		})
	}
	if err != nil {
		return utils.SubmitError(err)
	}

	s.mu.Lock()
	s.body = ""
	s.subject = ""
	s.inReplyTo = ""
	s.attachments = nil
	s.mu.Unlock()
	s.assets.Clear()
	for _, f := range s.fields {
		f.Reset()
	}
	s.drafts.Clear(s.cc)

	if s.events != nil {
		s.events.Publish(s.cc.UserID, EventSubmitted, map[string]string{
			"kind":    string(s.cc.Kind),
			"context": s.cc.ContextID,
		})
	}
	return nil
}

// Close detaches the paste interceptor. Draft state stays on disk.
func (s *Session) Close() {
	s.paste.Detach()
}

// saveDraftLocked persists the current draft. Callers hold s.mu.
func (s *Session) saveDraftLocked() {
	rec := models.DraftRecord{Body: s.body}
	if s.cc.Kind == models.KindPost {
		rec.AssetMap = s.assets.Snapshot()
		rec.Attachments = s.attachments
	}
	s.drafts.Save(s.cc, rec)
}
