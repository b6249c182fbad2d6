package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/httpx"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

const (
	dateLayout        = "2006-01-02"
	idempotencyHeader = "Idempotency-Key"
	idempotencyModule = "planning.approve"
)

// Enqueuer schedules asynchronous planning runs.
type Enqueuer interface {
	EnqueuePlanningRun(ctx context.Context, start, end time.Time) (string, error)
}

// IdempotencyPort guards approvals against replayed requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes planning endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	enqueuer    Enqueuer
	idempotency IdempotencyPort
	validator   *validator.Validate
}

// NewHandler builds Handler instance. enqueuer and idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer, idempotency IdempotencyPort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		enqueuer:    enqueuer,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers planning routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/runs", h.listRuns)
	r.Post("/runs", h.executePlan)
	r.Post("/runs/enqueue", h.enqueuePlan)
	r.Get("/runs/{id}", h.getRun)
	r.Get("/runs/{id}/suggestions", h.getSuggestions)
	r.Get("/runs/{id}/suggestions.xlsx", h.exportSuggestions)
	r.Post("/runs/{id}/approve", h.approve)
}

type windowRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type approveRequest struct {
	SuggestionIDs []int64 `json:"suggestion_ids" validate:"required,min=1,dive,gt=0"`
}

type runsResponse struct {
	Runs       []RunSummary      `json:"runs"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) executePlan(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.decodeWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.ExecutePlan(r.Context(), ExecuteInput{Start: start, End: end, Source: SourceManual})
	if err != nil {
		h.logger.Error("execute plan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) enqueuePlan(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue not configured")
		return
	}
	start, end, err := h.decodeWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	taskID, err := h.enqueuer.EnqueuePlanningRun(r.Context(), start, end)
	if err != nil {
		h.logger.Error("enqueue plan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	runs, pagination, err := h.service.ListRuns(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list runs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, runsResponse{Runs: runs, Pagination: pagination})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) getSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.GetSuggestions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) exportSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := h.service.ExportSuggestions(r.Context(), id)
	if err != nil {
		h.logger.Error("export suggestions", slog.Int64("run_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Attachment(w, httpx.ContentTypeXLSX, fmt.Sprintf("planning-run-%d.xlsx", id), body)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			if !errors.Is(err, shared.ErrConflict) {
				h.logger.Error("approval idempotency", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
	}

	result, err := h.service.ApproveSuggestions(r.Context(), id, req.SuggestionIDs)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key, idempotencyModule); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		if ae, ok := AsApprovalError(err); ok {
			h.logger.Error("approve suggestions",
				slog.Int64("run_id", id),
				slog.Int64("supplier_id", ae.SupplierID),
				slog.Any("created_orders", ae.Created),
				slog.Any("error", ae.Err))
			httpx.Problem(w, http.StatusInternalServerError, "Transaction Failed",
				fmt.Sprintf("approval failed for supplier %d; orders created before failure: %v", ae.SupplierID, ae.Created))
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decodeWindow(r *http.Request) (time.Time, time.Time, error) {
	var req windowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return time.Time{}, time.Time{}, validationError(err)
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date", ErrValidation)
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date", ErrValidation)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date before start_date", ErrValidation)
	}
	return start, end, nil
}

func runID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid run id", ErrValidation)
	}
	return id, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, "; "))
}
