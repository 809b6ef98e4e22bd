package api

import (
	"github.com/gofiber/fiber/v2"

	"feedcompose/compose"
	"feedcompose/models"
	"feedcompose/recipients"
	"feedcompose/utils"
)

// RecipientHandler exposes the recipient field state machines over HTTP.
type RecipientHandler struct {
	manager *compose.Manager
	log     *utils.Logger
}

// NewRecipientHandler creates a new recipient handler.
func NewRecipientHandler(manager *compose.Manager, log *utils.Logger) *RecipientHandler {
	return &RecipientHandler{manager: manager, log: log}
}

func (h *RecipientHandler) field(c *fiber.Ctx) (*compose.Session, models.RecipientFieldKind, *recipients.Field, error) {
	cc, err := composerContext(c)
	if err != nil {
		return nil, "", nil, err
	}
	sess, err := h.manager.Get(cc)
	if err != nil {
		return nil, "", nil, err
	}
	kind, err := models.ParseRecipientFieldKind(c.Params("field"))
	if err != nil {
		return nil, "", nil, utils.ValidationError("error_invalid_field", err)
	}
	return sess, kind, sess.Field(kind), nil
}

// Search handles a term change: look up candidates and return the field
// state after the result has been applied (or dropped as stale).
func (h *RecipientHandler) Search(c *fiber.Ctx) error {
	sess, kind, field, err := h.field(c)
	if err != nil {
		return err
	}
	var req struct {
		Term string `json:"term"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	sess.SearchRecipients(c.Context(), kind, req.Term)
	return c.JSON(field.Snapshot())
}

// Focus re-issues the search for the field's current term.
func (h *RecipientHandler) Focus(c *fiber.Ctx) error {
	sess, kind, field, err := h.field(c)
	if err != nil {
		return err
	}
	sess.FocusRecipients(c.Context(), kind)
	return c.JSON(field.Snapshot())
}

// Blur schedules the dropdown close.
func (h *RecipientHandler) Blur(c *fiber.Ctx) error {
	_, _, field, err := h.field(c)
	if err != nil {
		return err
	}
	field.Blur()
	return c.JSON(field.Snapshot())
}

// Select turns a candidate into a token.
func (h *RecipientHandler) Select(c *fiber.Ctx) error {
	_, _, field, err := h.field(c)
	if err != nil {
		return err
	}
	var req models.RecipientCandidate
	if err := c.BodyParser(&req); err != nil {
		return utils.ValidationError("error_bad_request", err)
	}
	if req.Value == "" {
		return utils.ValidationError("error_bad_request", nil)
	}
	field.Select(req)
	return c.JSON(field.Snapshot())
}

// Remove deletes a token by its address key.
func (h *RecipientHandler) Remove(c *fiber.Ctx) error {
	_, _, field, err := h.field(c)
	if err != nil {
		return err
	}
	field.Remove(c.Params("address"))
	return c.JSON(field.Snapshot())
}
