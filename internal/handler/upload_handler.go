package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/markmate/upload-engine/internal/domain"
	"github.com/markmate/upload-engine/internal/repository"
	"github.com/markmate/upload-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
	maxUploadBytes  = 10 << 20
)

type UploadService interface {
	CreateUpload(ctx context.Context, req service.UploadRequest) (*domain.Batch, error)
	Validate(data []byte) (*service.ValidationResult, error)
}

type ReportService interface {
	ListBatches(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error)
	ListCandidates(ctx context.Context, batchID string, params repository.CandidateListParams) ([]domain.Candidate, int64, error)
	GetBatchSummary(ctx context.Context, batchID string) (*service.BatchSummary, error)
	GetActive(ctx context.Context) (*service.BatchSummary, error)
	GetStats(ctx context.Context) (*service.DashboardStats, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

type UploadHandler struct {
	uploads UploadService
	reports ReportService
}

func NewUploadHandler(uploads UploadService, reports ReportService) (*UploadHandler, error) {
	if uploads == nil {
		return nil, fmt.Errorf("upload service is required")
	}
	if reports == nil {
		return nil, fmt.Errorf("report service is required")
	}
	return &UploadHandler{uploads: uploads, reports: reports}, nil
}

func RegisterUploadRoutes(router fiber.Router, uploads UploadService, reports ReportService) error {
	h, err := NewUploadHandler(uploads, reports)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/uploads", h.CreateUpload)
	v1.Post("/uploads/validate", h.ValidateUpload)
	v1.Get("/uploads", h.ListUploads)
	v1.Get("/uploads/active", h.GetActive)
	v1.Get("/uploads/stats", h.GetStats)
	v1.Get("/uploads/export/csv", h.ExportCSV)
	v1.Get("/uploads/:batchId", h.GetUpload)
	v1.Get("/uploads/:batchId/candidates", h.ListCandidates)

	return nil
}

type batchResponse struct {
	ID            string     `json:"id"`
	FileName      string     `json:"fileName"`
	PortalBatchID string     `json:"portalBatchId"`
	CredentialID  string     `json:"credentialId"`
	Status        string     `json:"status"`
	ErrorMessage  *string    `json:"errorMessage,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type candidateResponse struct {
	ID           string  `json:"id"`
	ExternalID   string  `json:"externalId"`
	Name         string  `json:"name"`
	RowIndex     int     `json:"rowIndex"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type listBatchesResponse struct {
	Data []batchResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listCandidatesResponse struct {
	Data []candidateResponse `json:"data"`
	Meta listMeta            `json:"meta"`
}

type batchSummaryResponse struct {
	Batch  batchResponse     `json:"batch"`
	Counts []statusCountItem `json:"counts"`
}

type statusCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (h *UploadHandler) CreateUpload(c *fiber.Ctx) error {
	req, err := parseUploadForm(c)
	if err != nil {
		return toHTTPError(err)
	}

	batch, err := h.uploads.CreateUpload(c.Context(), req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toBatchResponse(batch))
}

func (h *UploadHandler) ValidateUpload(c *fiber.Ctx) error {
	data, _, err := readUploadFile(c)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.uploads.Validate(data)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *UploadHandler) ListUploads(c *fiber.Ctx) error {
	params, err := parseBatchListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	batches, total, err := h.reports.ListBatches(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchResponse, 0, len(batches))
	for i := range batches {
		data = append(data, toBatchResponse(&batches[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *UploadHandler) GetUpload(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	summary, err := h.reports.GetBatchSummary(c.Context(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toSummaryResponse(summary))
}

func (h *UploadHandler) ListCandidates(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))

	params := repository.CandidateListParams{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if params.Page < 1 {
		return toHTTPError(fmt.Errorf("%w: page must be >= 1", domain.ErrValidation))
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return toHTTPError(fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize))
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseCandidateStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	candidates, total, err := h.reports.ListCandidates(c.Context(), batchID, params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]candidateResponse, 0, len(candidates))
	for i := range candidates {
		data = append(data, toCandidateResponse(&candidates[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listCandidatesResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *UploadHandler) GetActive(c *fiber.Ctx) error {
	summary, err := h.reports.GetActive(c.Context())
	if err != nil {
		return toHTTPError(err)
	}
	if summary == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"active": nil})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"active": toSummaryResponse(summary)})
}

func (h *UploadHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.reports.GetStats(c.Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *UploadHandler) ExportCSV(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="uploads.csv"`)

	if err := h.reports.ExportCSV(c.Context(), c.Response().BodyWriter()); err != nil {
		return toHTTPError(err)
	}
	return nil
}

func parseUploadForm(c *fiber.Ctx) (service.UploadRequest, error) {
	data, fileName, err := readUploadFile(c)
	if err != nil {
		return service.UploadRequest{}, err
	}

	return service.UploadRequest{
		FileName:      fileName,
		PortalBatchID: strings.TrimSpace(c.FormValue("portalBatchId")),
		CredentialID:  strings.TrimSpace(c.FormValue("credentialId")),
		Data:          data,
	}, nil
}

func readUploadFile(c *fiber.Ctx) ([]byte, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: file is required", domain.ErrValidation)
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, "", fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, maxUploadBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, "", fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, maxUploadBytes)
	}
	return data, fileHeader.Filename, nil
}

func parseBatchListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBatchStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	return params, nil
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}
	return batchResponse{
		ID:            b.ID,
		FileName:      b.FileName,
		PortalBatchID: b.PortalBatchID,
		CredentialID:  b.CredentialID,
		Status:        b.Status.String(),
		ErrorMessage:  b.ErrorMessage,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toCandidateResponse(c *domain.Candidate) candidateResponse {
	if c == nil {
		return candidateResponse{}
	}
	return candidateResponse{
		ID:           c.ID,
		ExternalID:   c.ExternalID,
		Name:         c.Name,
		RowIndex:     c.RowIndex,
		Status:       c.Status.String(),
		ErrorMessage: c.ErrorMessage,
	}
}

func toSummaryResponse(summary *service.BatchSummary) batchSummaryResponse {
	resp := batchSummaryResponse{
		Batch: toBatchResponse(&summary.Batch),
	}
	for _, count := range summary.Counts {
		resp.Counts = append(resp.Counts, statusCountItem{
			Status: count.Status.String(),
			Count:  count.Count,
		})
	}
	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
