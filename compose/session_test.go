package compose

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcompose/backend"
	"feedcompose/config"
	"feedcompose/drafts"
	"feedcompose/models"
	"feedcompose/utils"
)

// fakeClient is a scriptable backend.Client.
type fakeClient struct {
	mu sync.Mutex

	uploadResult backend.UploadResult
	uploadErr    error
	uploads      []backend.UploadRequest

	postErr error
	posts   []backend.PostRequest

	sendErr error
	sends   []backend.SendEmailRequest

	searchResults []models.RecipientCandidate

	templateResult backend.TemplateResult
	templateErr    error

	senders   []backend.Option
	signature string
	quick     []backend.QuickText
	templates []backend.Option
	initial   backend.InitialValues
	original  backend.OriginalMessage
}

func (f *fakeClient) Upload(ctx context.Context, req backend.UploadRequest) (backend.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, req)
	if f.uploadErr != nil {
		return backend.UploadResult{}, f.uploadErr
	}
	if f.uploadResult != (backend.UploadResult{}) {
		return f.uploadResult, nil
	}
	n := len(f.uploads)
	return backend.UploadResult{
		DocumentID:  fmt.Sprintf("doc-%d", n),
		VersionID:   fmt.Sprintf("ver-%d", n),
		DownloadURL: fmt.Sprintf("https://files.example/doc-%d", n),
	}, nil
}

func (f *fakeClient) PostFeedItem(ctx context.Context, req backend.PostRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, req)
	return nil
}

func (f *fakeClient) SendEmail(ctx context.Context, req backend.SendEmailRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, req)
	return nil
}

func (f *fakeClient) SearchRecipients(ctx context.Context, term string) ([]models.RecipientCandidate, error) {
	return f.searchResults, nil
}

func (f *fakeClient) RenderTemplate(ctx context.Context, req backend.TemplateRequest) (backend.TemplateResult, error) {
	if f.templateErr != nil {
		return backend.TemplateResult{}, f.templateErr
	}
	return f.templateResult, nil
}

func (f *fakeClient) SenderOptions(ctx context.Context) ([]backend.Option, error) {
	return f.senders, nil
}

func (f *fakeClient) UserSignature(ctx context.Context) (string, error) {
	return f.signature, nil
}

func (f *fakeClient) QuickTexts(ctx context.Context) ([]backend.QuickText, error) {
	return f.quick, nil
}

func (f *fakeClient) Templates(ctx context.Context, contextID string) ([]backend.Option, error) {
	return f.templates, nil
}

func (f *fakeClient) InitialValues(ctx context.Context, contextID string) (backend.InitialValues, error) {
	return f.initial, nil
}

func (f *fakeClient) OriginalMessage(ctx context.Context, contextID string) (backend.OriginalMessage, error) {
	return f.original, nil
}

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Backend.BaseURL = "http://backend"
	cfg.JWT.Secret = "secret"
	return cfg
}

func newTestSession(t *testing.T, kind models.ComposerKind, client *fakeClient) (*Session, *drafts.Store) {
	t.Helper()
	log := utils.NewLogger(utils.ERROR)
	store := drafts.NewStore(newMemKV(), log)
	cc := models.ComposerContext{Kind: kind, ContextID: "rec-1", UserID: "user-1"}
	return NewSession(cc, testConfig(), client, store, nil, log), store
}

func TestOpenSeedsSignatureIntoEmptyBody(t *testing.T) {
	client := &fakeClient{signature: "Regards<br>Dana"}
	sess, _ := newTestSession(t, models.KindEmail, client)

	require.NoError(t, sess.Open(context.Background()))

	v := sess.Snapshot()
	assert.Equal(t, "<p><br></p><p>Regards</p><p>Dana</p>", v.Body)
}

func TestOpenRestoredDraftBeatsSignature(t *testing.T) {
	client := &fakeClient{signature: "Regards<br>Dana"}
	sess, store := newTestSession(t, models.KindEmail, client)
	cc := models.ComposerContext{Kind: models.KindEmail, ContextID: "rec-1", UserID: "user-1"}
	store.Save(cc, models.DraftRecord{Body: "<p>work in progress</p>"})

	require.NoError(t, sess.Open(context.Background()))

	assert.Equal(t, "<p>work in progress</p>", sess.Snapshot().Body)
}

func TestOpenSeedsReplySubjectAndRecipients(t *testing.T) {
	client := &fakeClient{
		initial: backend.InitialValues{
			ContactEmail:     "customer@example.com",
			ContactName:      "Customer",
			CurrentUserEmail: "agent@example.com",
			CurrentUserName:  "Agent",
		},
		original: backend.OriginalMessage{HasContent: true, MessageID: "msg-9", Subject: "Broken widget"},
	}
	sess, _ := newTestSession(t, models.KindEmail, client)

	require.NoError(t, sess.Open(context.Background()))

	v := sess.Snapshot()
	assert.Equal(t, "RE: Broken widget", v.Subject)
	assert.Equal(t, "msg-9", v.InReplyTo)
	require.Len(t, v.Fields[models.FieldTo].Tokens, 1)
	assert.Equal(t, "customer@example.com", v.Fields[models.FieldTo].Tokens[0].AddressKey)
	require.Len(t, v.Fields[models.FieldBcc].Tokens, 1)
	assert.Equal(t, "agent@example.com", v.Fields[models.FieldBcc].Tokens[0].AddressKey)
}

func TestOpenPrefersSupportSender(t *testing.T) {
	client := &fakeClient{senders: []backend.Option{
		{Value: "s1", Label: "Alerts <alerts@example.com>"},
		{Value: "s2", Label: "Support <support@example.com>"},
	}}
	sess, _ := newTestSession(t, models.KindEmail, client)

	require.NoError(t, sess.Open(context.Background()))

	assert.Equal(t, "s2", sess.Snapshot().SenderID)
}

func TestPostCanSubmitRequiresVisibleContent(t *testing.T) {
	sess, _ := newTestSession(t, models.KindPost, &fakeClient{})
	require.NoError(t, sess.Open(context.Background()))

	assert.False(t, sess.CanSubmit())

	sess.SetBody("<p>   </p>")
	assert.False(t, sess.CanSubmit())

	sess.SetBody(`<p><img src="asset://x"></p>`)
	assert.True(t, sess.CanSubmit())

	sess.SetBody("<p>hello</p>")
	assert.True(t, sess.CanSubmit())
}

func TestEmailCanSubmitRequiresRecipientAndSubject(t *testing.T) {
	sess, _ := newTestSession(t, models.KindEmail, &fakeClient{})
	require.NoError(t, sess.Open(context.Background()))

	assert.False(t, sess.CanSubmit())

	sess.Field(models.FieldTo).Select(models.RecipientCandidate{Value: "a@example.com", Label: "A"})
	assert.False(t, sess.CanSubmit())

	sess.SetSubject("   ")
	assert.False(t, sess.CanSubmit())

	sess.SetSubject("Hello")
	assert.True(t, sess.CanSubmit())
}

func TestSubmitPostClearsStateAndDraft(t *testing.T) {
	client := &fakeClient{}
	sess, store := newTestSession(t, models.KindPost, client)
	require.NoError(t, sess.Open(context.Background()))

	sess.SetBody("<p>hello</p>")
	require.NoError(t, sess.Submit(context.Background()))

	require.Len(t, client.posts, 1)
	assert.Equal(t, "<p>hello</p>", client.posts[0].Body)

	v := sess.Snapshot()
	assert.Empty(t, v.Body)
	assert.False(t, v.CanSubmit)

	cc := models.ComposerContext{Kind: models.KindPost, ContextID: "rec-1", UserID: "user-1"}
	rec, ok := store.Restore(cc)
	require.True(t, ok)
	assert.True(t, rec.Empty())
}

func TestSubmitFailureRetainsState(t *testing.T) {
	client := &fakeClient{postErr: fmt.Errorf("backend down")}
	sess, _ := newTestSession(t, models.KindPost, client)
	require.NoError(t, sess.Open(context.Background()))

	sess.SetBody("<p>hello</p>")
	err := sess.Submit(context.Background())
	require.Error(t, err)

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindSubmit, appErr.Kind)

	// Everything is still there for retry.
	v := sess.Snapshot()
	assert.Equal(t, "<p>hello</p>", v.Body)
	assert.True(t, v.CanSubmit)
}

func TestSubmitEmailCarriesRecipientsAndThreading(t *testing.T) {
	client := &fakeClient{original: backend.OriginalMessage{HasContent: true, MessageID: "msg-1", Subject: "Hi"}}
	sess, _ := newTestSession(t, models.KindEmail, client)
	require.NoError(t, sess.Open(context.Background()))

	sess.Field(models.FieldTo).Select(models.RecipientCandidate{Value: "a@example.com", Label: "A"})
	sess.Field(models.FieldCc).Select(models.RecipientCandidate{Value: "c@example.com", Label: "C"})
	sess.SetBody("<p>reply</p>")

	require.NoError(t, sess.Submit(context.Background()))

	require.Len(t, client.sends, 1)
	sent := client.sends[0]
	assert.Equal(t, []string{"a@example.com"}, sent.To)
	assert.Equal(t, []string{"c@example.com"}, sent.Cc)
	assert.Equal(t, "RE: Hi", sent.Subject)
	assert.Equal(t, "msg-1", sent.InReplyTo)

	// Recipient fields reset after a successful send.
	assert.Empty(t, sess.Field(models.FieldTo).Tokens())
}

func TestInsertImageSplicesMarkerAndSavesDraft(t *testing.T) {
	client := &fakeClient{uploadResult: backend.UploadResult{
		DocumentID:  "docA",
		VersionID:   "verA",
		DownloadURL: "https://files.example/a?versionId=verA",
	}}
	sess, store := newTestSession(t, models.KindPost, client)
	require.NoError(t, sess.Open(context.Background()))

	record, err := sess.InsertImage(context.Background(), []byte("img"), "shot.png")
	require.NoError(t, err)
	assert.Equal(t, "docA", record.DocumentID)

	v := sess.Snapshot()
	assert.Contains(t, v.Body, `src="https://files.example/a?versionId=verA"`)
	assert.Contains(t, v.Body, `alt="shot.png"`)

	cc := models.ComposerContext{Kind: models.KindPost, ContextID: "rec-1", UserID: "user-1"}
	rec, ok := store.Restore(cc)
	require.True(t, ok)
	assert.Contains(t, rec.Body, "files.example")
	require.Len(t, rec.AssetMap, 1)
}

func TestInsertImageTooLarge(t *testing.T) {
	client := &fakeClient{}
	sess, _ := newTestSession(t, models.KindPost, client)
	require.NoError(t, sess.Open(context.Background()))
	sess.cfg.Uploads.MaxBytes = 4

	_, err := sess.InsertImage(context.Background(), []byte("12345"), "big.png")
	require.Error(t, err)
	assert.Empty(t, client.uploads)
}

func TestHandlePasteIgnoresTextOnly(t *testing.T) {
	sess, _ := newTestSession(t, models.KindPost, &fakeClient{})
	require.NoError(t, sess.Open(context.Background()))

	handled, err := sess.HandlePaste(context.Background(), []models.ClipboardItem{
		{MediaType: "text/plain", Data: []byte("hello")},
	})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestHandlePasteUploadsImage(t *testing.T) {
	client := &fakeClient{uploadResult: backend.UploadResult{
		DocumentID: "docA", VersionID: "verA", DownloadURL: "https://files.example/a",
	}}
	sess, _ := newTestSession(t, models.KindPost, client)
	require.NoError(t, sess.Open(context.Background()))

	handled, err := sess.HandlePaste(context.Background(), []models.ClipboardItem{
		{MediaType: "text/plain", Data: []byte("hello")},
		{MediaType: "image/png", Data: []byte("img")},
	})
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, client.uploads, 1)
	assert.True(t, strings.HasPrefix(client.uploads[0].FileName, "pasted_"))
	assert.Contains(t, sess.Snapshot().Body, "files.example")
}

func TestApplyQuickTextAppends(t *testing.T) {
	client := &fakeClient{quick: []backend.QuickText{
		{Value: "qt1", Label: "Greeting", Message: "<p>Thanks for reaching out.</p>"},
	}}
	sess, _ := newTestSession(t, models.KindPost, client)
	require.NoError(t, sess.Open(context.Background()))

	sess.SetBody("<p>Hi.</p>")
	require.NoError(t, sess.ApplyQuickText("qt1"))
	assert.Equal(t, "<p>Hi.</p><p>Thanks for reaching out.</p>", sess.Snapshot().Body)

	assert.Error(t, sess.ApplyQuickText("missing"))
}

func TestApplyTemplateReplacesBodyAndKeepsSignature(t *testing.T) {
	client := &fakeClient{
		signature:      "Regards",
		templateResult: backend.TemplateResult{HTMLBody: "<p>Template body</p><script>evil()</script>"},
	}
	sess, _ := newTestSession(t, models.KindEmail, client)
	require.NoError(t, sess.Open(context.Background()))

	require.NoError(t, sess.ApplyTemplate(context.Background(), "tpl-1"))

	body := sess.Snapshot().Body
	assert.Contains(t, body, "<p>Template body</p>")
	assert.NotContains(t, body, "script")
	assert.Contains(t, body, "Regards")
}

func TestApplyTemplateFailureLeavesBody(t *testing.T) {
	client := &fakeClient{templateErr: fmt.Errorf("render failed")}
	sess, _ := newTestSession(t, models.KindEmail, client)
	require.NoError(t, sess.Open(context.Background()))

	sess.SetBody("<p>original</p>")
	err := sess.ApplyTemplate(context.Background(), "tpl-1")
	require.Error(t, err)

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindTemplate, appErr.Kind)
	assert.Equal(t, "<p>original</p>", sess.Snapshot().Body)
}

func TestAddAttachmentValidatesExtension(t *testing.T) {
	client := &fakeClient{}
	sess, _ := newTestSession(t, models.KindEmail, client)
	require.NoError(t, sess.Open(context.Background()))

	_, err := sess.AddAttachment(context.Background(), []byte("x"), "malware.exe")
	require.Error(t, err)
	assert.Empty(t, client.uploads)

	att, err := sess.AddAttachment(context.Background(), []byte("x"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", att.Name)

	// Attachments never enter the inline asset map.
	assert.Zero(t, sess.assets.Len())

	require.True(t, sess.RemoveAttachment(att.DocumentID))
	assert.False(t, sess.RemoveAttachment(att.DocumentID))
}

func TestSetSenderRejectsUnknownOption(t *testing.T) {
	client := &fakeClient{senders: []backend.Option{{Value: "s1", Label: "Support <support@example.com>"}}}
	sess, _ := newTestSession(t, models.KindEmail, client)
	require.NoError(t, sess.Open(context.Background()))

	assert.Error(t, sess.SetSender("bogus"))
	assert.NoError(t, sess.SetSender("s1"))
}

func TestSetVisibilityValidates(t *testing.T) {
	sess, _ := newTestSession(t, models.KindPost, &fakeClient{})
	require.NoError(t, sess.Open(context.Background()))

	assert.Error(t, sess.SetVisibility("Everyone"))
	assert.NoError(t, sess.SetVisibility(models.VisibilityInternal))
	assert.Equal(t, models.VisibilityInternal, sess.Snapshot().Visibility)
}
