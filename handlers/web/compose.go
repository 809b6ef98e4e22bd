// Package web serves the composer page.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"feedcompose/config"
	"feedcompose/models"
	"feedcompose/utils"
)

// ComposeHandler renders the composer page shell. All composer state is
// fetched by the page over the JSON API.
type ComposeHandler struct {
	config *config.Config
}

// NewComposeHandler creates a new compose page handler.
func NewComposeHandler(cfg *config.Config) *ComposeHandler {
	return &ComposeHandler{config: cfg}
}

// ShowComposer renders the composer for a record.
func (h *ComposeHandler) ShowComposer(c *fiber.Ctx) error {
	kind, err := models.ParseComposerKind(c.Params("kind"))
	if err != nil {
		return utils.ValidationError("error_invalid_kind", err)
	}
	recordID := c.Params("recordId")
	if recordID == "" {
		return utils.ValidationError("error_invalid_context", nil)
	}

	localizer, _ := c.Locals("localizer").(*i18n.Localizer)
	lang, _ := c.Locals("lang").(string)

	return c.Render("compose", fiber.Map{
		"Title":              utils.T(localizer, "composer_title"),
		"Kind":               string(kind),
		"RecordID":           recordID,
		"Lang":               lang,
		"AcceptedExtensions": h.config.Uploads.AcceptedExtensions,
		"MaxBytes":           h.config.Uploads.MaxBytes,
	})
}
