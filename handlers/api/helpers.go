package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"feedcompose/models"
	"feedcompose/utils"
)

// CurrentUserID returns the authenticated user id stashed in Locals by the
// auth middleware, or "" when the request is unauthenticated.
func CurrentUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

// composerContext builds the ComposerContext from the route parameters and
// the authenticated user.
func composerContext(c *fiber.Ctx) (models.ComposerContext, error) {
	userID := CurrentUserID(c)
	if userID == "" {
		return models.ComposerContext{}, utils.UnauthorizedError(nil)
	}
	kind, err := models.ParseComposerKind(c.Params("kind"))
	if err != nil {
		return models.ComposerContext{}, utils.ValidationError("error_invalid_kind", err)
	}
	contextID := c.Params("recordId")
	if contextID == "" {
		return models.ComposerContext{}, utils.ValidationError("error_invalid_context", fmt.Errorf("missing record id"))
	}
	return models.ComposerContext{Kind: kind, ContextID: contextID, UserID: userID}, nil
}
