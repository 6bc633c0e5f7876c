package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/transport"
	"go.uber.org/zap"
)

type stubCredentialService struct {
	createFn func(ctx context.Context, username, password string) (*domain.Credential, error)
	listFn   func(ctx context.Context) ([]domain.Credential, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubCredentialService) Create(ctx context.Context, username, password string) (*domain.Credential, error) {
	if s.createFn != nil {
		return s.createFn(ctx, username, password)
	}
	return &domain.Credential{ID: "c1", Username: username}, nil
}

func (s *stubCredentialService) List(ctx context.Context) ([]domain.Credential, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubCredentialService) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func newCredentialTestApp(t *testing.T, svc CredentialService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := RegisterCredentialRoutes(app, svc); err != nil {
		t.Fatalf("RegisterCredentialRoutes() error = %v", err)
	}
	return app
}

func TestCredentialIntegration_Create(t *testing.T) {
	t.Parallel()

	svc := &stubCredentialService{
		createFn: func(ctx context.Context, username, password string) (*domain.Credential, error) {
			if username != "examiner" || password != "hunter2" {
				t.Fatalf("create(%q, %q)", username, password)
			}
			return &domain.Credential{ID: "c-created", Username: username}, nil
		},
	}
	app := newCredentialTestApp(t, svc)

	body := strings.NewReader(`{"username":"examiner","password":"hunter2"}`)
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/credentials", body, fiber.MIMEApplicationJSON)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(respBody))
	}

	// The response must never echo the password or ciphertext.
	if strings.Contains(string(respBody), "hunter2") {
		t.Fatal("response leaked the password")
	}
	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["id"] != "c-created" {
		t.Fatalf("id = %v", parsed["id"])
	}
	if _, exists := parsed["encryptedSecret"]; exists {
		t.Fatal("response carries a secret field")
	}
}

func TestCredentialIntegration_CreateValidation(t *testing.T) {
	t.Parallel()

	svc := &stubCredentialService{
		createFn: func(ctx context.Context, username, password string) (*domain.Credential, error) {
			return nil, domain.ErrValidation
		},
	}
	app := newCredentialTestApp(t, svc)

	body := strings.NewReader(`{"username":"","password":""}`)
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/credentials", body, fiber.MIMEApplicationJSON)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCredentialIntegration_Delete(t *testing.T) {
	t.Parallel()

	svc := &stubCredentialService{
		deleteFn: func(ctx context.Context, id string) error {
			if id != "c1" {
				t.Fatalf("delete id = %q", id)
			}
			return nil
		},
	}
	app := newCredentialTestApp(t, svc)

	resp, _ := performRequest(t, app, http.MethodDelete, "/v1/credentials/c1", nil, "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestCredentialIntegration_DeleteNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubCredentialService{
		deleteFn: func(ctx context.Context, id string) error {
			return domain.ErrNotFound
		},
	}
	app := newCredentialTestApp(t, svc)

	resp, _ := performRequest(t, app, http.MethodDelete, "/v1/credentials/missing", nil, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
