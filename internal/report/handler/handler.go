package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/internal/report/service"
	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
	"github.com/technerv/election-monitor/pkg/platform/httputil"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

const maxListLimit = 200

// Service defines the report operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, principal domain.Principal, cmd service.SubmitCommand) (*models.Report, error)
	Get(ctx context.Context, id domain.ReportID) (*models.Report, error)
	Transition(ctx context.Context, principal domain.Principal, id domain.ReportID, status models.Status, notes string) (*models.Report, error)
	Respond(ctx context.Context, principal domain.Principal, id domain.ReportID, notes string) (*models.Report, error)
	Verifications(ctx context.Context, id domain.ReportID) ([]models.VerificationEvent, error)
	Live(ctx context.Context, kind models.Kind, limit int) ([]*models.Report, error)
	CriticalIncidents(ctx context.Context, limit int) ([]*models.Report, error)
	Statistics(ctx context.Context, kind models.Kind) (*service.Statistics, error)
}

// Handler serves report submission, verification and read endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the report routes. Every route accepts anonymous callers;
// the service answers Forbidden when the principal lacks the capability to
// verify or respond.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reports", h.HandleSubmit)
	r.Get("/reports/live", h.HandleLive)
	r.Get("/reports/statistics", h.HandleStatistics)
	r.Get("/reports/{id}", h.HandleGet)
	r.Get("/reports/{id}/verifications", h.HandleVerifications)
	r.Get("/incidents/critical", h.HandleCritical)
	r.Post("/reports/{id}/verify", h.HandleVerify)
	r.Post("/reports/{id}/respond", h.HandleRespond)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	report, err := h.service.Submit(ctx, requestcontext.Principal(ctx), req.Command())
	if err != nil {
		h.logFailure(ctx, "submit report failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, SubmitReportResponse{ReportID: report.ID, Status: report.Status})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	report, err := h.service.Transition(ctx, requestcontext.Principal(ctx), id, models.Status(req.Status), req.Notes)
	if err != nil {
		h.logFailure(ctx, "verify report failed", err, "report_id", id.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RespondRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	report, err := h.service.Respond(ctx, requestcontext.Principal(ctx), id, req.Notes)
	if err != nil {
		h.logFailure(ctx, "respond to incident failed", err, "report_id", id.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleVerifications(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.Verifications(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []models.VerificationEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, VerificationsResponse{ReportID: id, Events: events})
}

func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	kind, err := optionalKind(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reports, err := h.service.Live(r.Context(), kind, limit)
	if err != nil {
		h.logFailure(r.Context(), "list live reports failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newReportList(reports))
}

func (h *Handler) HandleCritical(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reports, err := h.service.CriticalIncidents(r.Context(), limit)
	if err != nil {
		h.logFailure(r.Context(), "list critical incidents failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newReportList(reports))
}

func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	kind, err := optionalKind(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.service.Statistics(r.Context(), kind)
	if err != nil {
		h.logFailure(r.Context(), "report statistics failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, args...)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg, args...)
	default:
		h.logger.WarnContext(ctx, msg, args...)
	}
}

func optionalKind(r *http.Request) (models.Kind, error) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return "", nil
	}
	return models.ParseKind(raw)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return maxListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
	}
	return min(n, maxListLimit), nil
}
