package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/markmate/upload-engine/internal/domain"
)

type CredentialService interface {
	Create(ctx context.Context, username, password string) (*domain.Credential, error)
	List(ctx context.Context) ([]domain.Credential, error)
	Delete(ctx context.Context, id string) error
}

type CredentialHandler struct {
	service CredentialService
}

func NewCredentialHandler(service CredentialService) (*CredentialHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("credential service is required")
	}
	return &CredentialHandler{service: service}, nil
}

func RegisterCredentialRoutes(router fiber.Router, service CredentialService) error {
	h, err := NewCredentialHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/credentials", h.CreateCredential)
	v1.Get("/credentials", h.ListCredentials)
	v1.Delete("/credentials/:id", h.DeleteCredential)

	return nil
}

type createCredentialRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// credentialResponse never carries the secret in any form.
type credentialResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *CredentialHandler) CreateCredential(c *fiber.Ctx) error {
	var req createCredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	credential, err := h.service.Create(c.Context(), req.Username, req.Password)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toCredentialResponse(credential))
}

func (h *CredentialHandler) ListCredentials(c *fiber.Ctx) error {
	credentials, err := h.service.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]credentialResponse, 0, len(credentials))
	for i := range credentials {
		data = append(data, toCredentialResponse(&credentials[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *CredentialHandler) DeleteCredential(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toCredentialResponse(credential *domain.Credential) credentialResponse {
	if credential == nil {
		return credentialResponse{}
	}
	return credentialResponse{
		ID:        credential.ID,
		Username:  credential.Username,
		CreatedAt: credential.CreatedAt,
	}
}
