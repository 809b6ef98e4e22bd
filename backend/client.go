// Package backend defines the contracts for the messaging/feed backend the
// composer talks to. Every backend interaction is an opaque RPC; the
// composer owns no transport details beyond these interfaces.
package backend

import (
	"context"

	"feedcompose/models"
)

// UploadRequest carries one file to the upload RPC.
type UploadRequest struct {
	Data       []byte `json:"data"`
	FileName   string `json:"file_name"`
	ContextID  string `json:"context_id"`
	Visibility string `json:"visibility"`
}

// UploadResult is the upload RPC response. DocumentID and VersionID are
// opaque; DownloadURL is what the editor renders into the document.
type UploadResult struct {
	DocumentID  string `json:"document_id"`
	VersionID   string `json:"version_id"`
	DownloadURL string `json:"download_url"`
}

// PostRequest carries a finished feed post.
type PostRequest struct {
	ContextID  string   `json:"context_id"`
	Body       string   `json:"body"`
	Visibility string   `json:"visibility"`
	AssetIDs   []string `json:"asset_ids"`
}

// SendEmailRequest carries a finished email.
type SendEmailRequest struct {
	ContextID string   `json:"context_id"`
	SenderID  string   `json:"sender_id"`
	To        []string `json:"to"`
	Cc        []string `json:"cc"`
	Bcc       []string `json:"bcc"`
	Subject   string   `json:"subject"`
	HTMLBody  string   `json:"html_body"`
	AssetIDs  []string `json:"asset_ids"`
	InReplyTo string   `json:"in_reply_to,omitempty"`
}

// TemplateRequest asks the backend to render a stored template.
type TemplateRequest struct {
	TemplateID       string `json:"template_id"`
	SubjectContextID string `json:"subject_context_id"`
	BodyContextID    string `json:"body_context_id"`
}

// TemplateResult may legitimately carry an empty body.
type TemplateResult struct {
	HTMLBody string `json:"html_body"`
}

// Option is a generic value/label pair (senders, templates).
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// QuickText is a reusable snippet the composer can append to a body.
type QuickText struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// InitialValues pre-fills a fresh email composer for a record.
type InitialValues struct {
	ContactID        string `json:"contact_id"`
	ContactEmail     string `json:"contact_email"`
	ContactName      string `json:"contact_name"`
	CurrentUserEmail string `json:"current_user_email"`
	CurrentUserName  string `json:"current_user_name"`
	Subject          string `json:"subject"`
}

// OriginalMessage describes the message being replied to, if any.
type OriginalMessage struct {
	HasContent bool   `json:"has_content"`
	MessageID  string `json:"message_id"`
	Subject    string `json:"subject"`
}

// Uploader performs the asset upload side effect.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
}

// FeedPoster submits a finished post.
type FeedPoster interface {
	PostFeedItem(ctx context.Context, req PostRequest) error
}

// EmailSender submits a finished email.
type EmailSender interface {
	SendEmail(ctx context.Context, req SendEmailRequest) error
}

// RecipientSearcher resolves a free-text term to recipient candidates.
type RecipientSearcher interface {
	SearchRecipients(ctx context.Context, term string) ([]models.RecipientCandidate, error)
}

// TemplateRenderer renders a stored template for a record.
type TemplateRenderer interface {
	RenderTemplate(ctx context.Context, req TemplateRequest) (TemplateResult, error)
}

// Directory supplies the composer's pre-fill data.
type Directory interface {
	SenderOptions(ctx context.Context) ([]Option, error)
	UserSignature(ctx context.Context) (string, error)
	QuickTexts(ctx context.Context) ([]QuickText, error)
	Templates(ctx context.Context, contextID string) ([]Option, error)
	InitialValues(ctx context.Context, contextID string) (InitialValues, error)
	OriginalMessage(ctx context.Context, contextID string) (OriginalMessage, error)
}

// Client is the full backend surface the composer depends on.
type Client interface {
	Uploader
	FeedPoster
	EmailSender
	RecipientSearcher
	TemplateRenderer
	Directory
}
