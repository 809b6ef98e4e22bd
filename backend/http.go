package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"feedcompose/models"
	"feedcompose/utils"
)

// RemoteError is a non-2xx backend response with its extracted message.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// RemoteMessage exposes the backend-supplied message to utils.SafeMessage.
func (e *RemoteError) RemoteMessage() string {
	return e.Message
}

// HTTPClient implements Client over a JSON-per-call HTTP API.
type HTTPClient struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
	log     *utils.Logger
}

// NewHTTPClient builds a client for the backend at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, log *utils.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
		log:     log.WithField("component", "backend"),
	}
}

// doJSON performs one round trip, encoding in (when non-nil) and decoding
// a 2xx body into out (when non-nil).
func (h *HTTPClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		req.SetBody(body)
	}

	deadline := time.Now().Add(h.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := h.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("backend call %s failed: %w", path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return &RemoteError{Status: status, Message: extractMessage(resp.Body())}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

// extractMessage digs a human-readable message out of an error payload.
// Any shape is tolerated; failure to extract yields the empty string.
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// Upload implements Uploader.
func (h *HTTPClient) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	var res UploadResult
	if err := h.doJSON(ctx, fasthttp.MethodPost, "/upload", req, &res); err != nil {
		return UploadResult{}, err
	}
	return res, nil
}

// PostFeedItem implements FeedPoster.
func (h *HTTPClient) PostFeedItem(ctx context.Context, req PostRequest) error {
	return h.doJSON(ctx, fasthttp.MethodPost, "/feed/post", req, nil)
}

// SendEmail implements EmailSender.
func (h *HTTPClient) SendEmail(ctx context.Context, req SendEmailRequest) error {
	return h.doJSON(ctx, fasthttp.MethodPost, "/email/send", req, nil)
}

// SearchRecipients implements RecipientSearcher.
func (h *HTTPClient) SearchRecipients(ctx context.Context, term string) ([]models.RecipientCandidate, error) {
	in := map[string]string{"search_term": term}
	var res []models.RecipientCandidate
	if err := h.doJSON(ctx, fasthttp.MethodPost, "/recipients/search", in, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// RenderTemplate implements TemplateRenderer.
func (h *HTTPClient) RenderTemplate(ctx context.Context, req TemplateRequest) (TemplateResult, error) {
	var res TemplateResult
	if err := h.doJSON(ctx, fasthttp.MethodPost, "/template/render", req, &res); err != nil {
		return TemplateResult{}, err
	}
	return res, nil
}

// SenderOptions implements Directory.
func (h *HTTPClient) SenderOptions(ctx context.Context) ([]Option, error) {
	var res []Option
	if err := h.doJSON(ctx, fasthttp.MethodGet, "/email/senders", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// UserSignature implements Directory.
func (h *HTTPClient) UserSignature(ctx context.Context) (string, error) {
	var res struct {
		Signature string `json:"signature"`
	}
	if err := h.doJSON(ctx, fasthttp.MethodGet, "/user/signature", nil, &res); err != nil {
		return "", err
	}
	return res.Signature, nil
}

// QuickTexts implements Directory.
func (h *HTTPClient) QuickTexts(ctx context.Context) ([]QuickText, error) {
	var res []QuickText
	if err := h.doJSON(ctx, fasthttp.MethodGet, "/quicktext", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Templates implements Directory.
func (h *HTTPClient) Templates(ctx context.Context, contextID string) ([]Option, error) {
	var res []Option
	path := "/templates?context_id=" + url.QueryEscape(contextID)
	if err := h.doJSON(ctx, fasthttp.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// InitialValues implements Directory.
func (h *HTTPClient) InitialValues(ctx context.Context, contextID string) (InitialValues, error) {
	var res InitialValues
	path := "/email/initial-values?context_id=" + url.QueryEscape(contextID)
	if err := h.doJSON(ctx, fasthttp.MethodGet, path, nil, &res); err != nil {
		return InitialValues{}, err
	}
	return res, nil
}

// OriginalMessage implements Directory.
func (h *HTTPClient) OriginalMessage(ctx context.Context, contextID string) (OriginalMessage, error) {
	var res OriginalMessage
	path := "/email/original?context_id=" + url.QueryEscape(contextID)
	if err := h.doJSON(ctx, fasthttp.MethodGet, path, nil, &res); err != nil {
		return OriginalMessage{}, err
	}
	return res, nil
}
