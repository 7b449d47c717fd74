package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-support/internal/api/dto"
	"github.com/spec-kit/marketplace-support/internal/auth"
	apperrors "github.com/spec-kit/marketplace-support/pkg/util"
)

// AuthHandler exchanges the shared API key for a short-lived access token.
type AuthHandler struct {
	tokens     *auth.TokenManager
	apiKeyHash string
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, apiKeyHash string) *AuthHandler {
	return &AuthHandler{tokens: tokens, apiKeyHash: apiKeyHash}
}

// Token POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.APIKey == "" {
		return apperrors.NewValidationError("api_key required", nil)
	}
	if h.apiKeyHash == "" {
		return apperrors.NewUnauthorized("api access disabled")
	}
	if err := auth.CompareAPIKey(h.apiKeyHash, req.APIKey); err != nil {
		return apperrors.NewUnauthorized("invalid api key")
	}

	token, expiresAt, err := h.tokens.GenerateToken("internal")
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{Token: token, ExpiresAt: expiresAt}})
}
