package api

import (
	"github.com/gofiber/fiber/v2"

	"feedcompose/utils"
)

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang == "" {
		lang = "en"
	}

	// Only allow supported languages
	if lang != "en" && lang != "ja" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	// Common translation keys for client-side use
	translations := map[string]string{
		"post_success":    utils.T(localizer, "post_success"),
		"email_sent":      utils.T(localizer, "email_sent"),
		"draft_restored":  utils.T(localizer, "draft_restored"),
		"error_upload":    utils.T(localizer, "error_upload"),
		"error_submit":    utils.T(localizer, "error_submit"),
		"error_search":    utils.T(localizer, "error_search"),
		"error_draft":     utils.T(localizer, "error_draft"),
		"error_template":  utils.T(localizer, "error_template"),
		"error_generic":   utils.T(localizer, "error_generic"),
		"error_unknown":   utils.T(localizer, "error_unknown"),
		"error_file_type": utils.T(localizer, "error_file_type"),
	}

	return c.JSON(translations)
}
