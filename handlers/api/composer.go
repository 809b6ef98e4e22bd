package api

import (
	"encoding/base64"
	"io"

	"github.com/gofiber/fiber/v2"

	"feedcompose/compose"
	"feedcompose/models"
	"feedcompose/utils"
)

// ComposerHandler exposes the composer session lifecycle over HTTP.
type ComposerHandler struct {
	manager *compose.Manager
	log     *utils.Logger
}

// NewComposerHandler creates a new composer handler.
func NewComposerHandler(manager *compose.Manager, log *utils.Logger) *ComposerHandler {
	return &ComposerHandler{manager: manager, log: log}
}

// session resolves the already-open session for the request's context.
func (h *ComposerHandler) session(c *fiber.Ctx) (*compose.Session, error) {
	cc, err := composerContext(c)
	if err != nil {
		return nil, err
	}
	return h.manager.Get(cc)
}

// Open creates or resumes a composer session and returns its full state.
func (h *ComposerHandler) Open(c *fiber.Ctx) error {
	cc, err := composerContext(c)
	if err != nil {
		return err
	}
	sess, err := h.manager.Open(c.Context(), cc)
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

// Close releases the session. The draft stays on disk.
func (h *ComposerHandler) Close(c *fiber.Ctx) error {
	cc, err := composerContext(c)
	if err != nil {
		return err
	}
	h.manager.Close(cc)
	return c.JSON(fiber.Map{"success": true})
}

// SetBody replaces the body text and persists the draft.
func (h *ComposerHandler) SetBody(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	sess.SetBody(req.Body)
	return c.JSON(fiber.Map{"success": true, "can_submit": sess.CanSubmit()})
}

// SetSubject replaces the subject line.
func (h *ComposerHandler) SetSubject(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Subject string `json:"subject"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	sess.SetSubject(req.Subject)
	return c.JSON(fiber.Map{"success": true, "can_submit": sess.CanSubmit()})
}

// SetSender selects one of the offered sender addresses.
func (h *ComposerHandler) SetSender(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req struct {
		SenderID string `json:"sender_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	if err := sess.SetSender(req.SenderID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetVisibility changes the post visibility scope.
func (h *ComposerHandler) SetVisibility(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Visibility string `json:"visibility"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	if err := sess.SetVisibility(req.Visibility); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// Paste feeds clipboard items through the paste interceptor. The handled
// flag tells the client whether to suppress its default paste.
func (h *ComposerHandler) Paste(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Items []struct {
			MediaType string `json:"media_type"`
			Name      string `json:"name"`
			Data      string `json:"data"` // base64
		} `json:"items"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	items := make([]models.ClipboardItem, 0, len(req.Items))
	for _, it := range req.Items {
		data, err := base64.StdEncoding.DecodeString(it.Data)
		if err != nil {
			return utils.ValidationError("error_bad_request", err)
		}
		items = append(items, models.ClipboardItem{MediaType: it.MediaType, Name: it.Name, Data: data})
	}
	handled, err := sess.HandlePaste(c.Context(), items)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"handled": handled, "body": sess.Snapshot().Body})
}

// InsertImage uploads a multipart image and splices it into the body.
func (h *ComposerHandler) InsertImage(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	data, name, err := multipartFile(c)
	if err != nil {
		return err
	}
	record, err := sess.InsertImage(c.Context(), data, name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"document_id": record.DocumentID,
		"body":        sess.Snapshot().Body,
	})
}

// AddAttachment uploads a multipart file as an explicit attachment.
func (h *ComposerHandler) AddAttachment(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	data, name, err := multipartFile(c)
	if err != nil {
		return err
	}
	att, err := sess.AddAttachment(c.Context(), data, name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "attachment": att})
}

// RemoveAttachment drops an attachment by document id.
func (h *ComposerHandler) RemoveAttachment(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	removed := sess.RemoveAttachment(c.Params("documentId"))
	return c.JSON(fiber.Map{"success": removed})
}

// ApplyQuickText appends a quick text snippet to the body.
func (h *ComposerHandler) ApplyQuickText(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.ApplyQuickText(c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "body": sess.Snapshot().Body})
}

// ApplyTemplate renders a stored template into the body.
func (h *ComposerHandler) ApplyTemplate(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.ApplyTemplate(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "body": sess.Snapshot().Body})
}

// Submit finalizes the composer and hands the message to the backend.
func (h *ComposerHandler) Submit(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.Submit(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "state": sess.Snapshot()})
}

// State returns the current session view.
func (h *ComposerHandler) State(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

// multipartFile reads the "file" part of a multipart form.
func multipartFile(c *fiber.Ctx) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", utils.ValidationError("error_bad_request", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", utils.ValidationError("error_bad_request", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", utils.ValidationError("error_bad_request", err)
	}
	return data, fh.Filename, nil
}
