package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technerv/election-monitor/internal/reconcile/service"
	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
	"github.com/technerv/election-monitor/pkg/platform/httputil"
	"github.com/technerv/election-monitor/pkg/platform/middleware/admin"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// Synchronizer is the reconciliation entry point exposed to operators.
type Synchronizer interface {
	Run(ctx context.Context, req service.Request) *service.Summary
}

type Handler struct {
	sync       Synchronizer
	adminToken string
	logger     *slog.Logger
}

func New(sync Synchronizer, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{sync: sync, adminToken: adminToken, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdmin(h.adminToken, h.logger))
		r.Post("/admin/sync", h.HandleSync)
	})
}

// SyncRequest mirrors the syncctl flags.
type SyncRequest struct {
	ElectionID   *int64 `json:"election_id"`
	AllElections bool   `json:"all_elections"`
	ResultsOnly  bool   `json:"results_only"`
	Live         bool   `json:"live"`
}

func (r *SyncRequest) Validate() error {
	if r.ElectionID != nil && *r.ElectionID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "election_id must be positive")
	}
	if r.Live && r.ElectionID != nil {
		return dErrors.New(dErrors.CodeValidation, "live runs cover every recent election; drop election_id")
	}
	return nil
}

func (r *SyncRequest) toRequest() service.Request {
	req := service.Request{AllElections: r.AllElections, ResultsOnly: r.ResultsOnly, Live: r.Live}
	if r.ElectionID != nil {
		id := domain.ElectionID(*r.ElectionID)
		req.ElectionID = &id
	}
	return req
}

// HandleSync runs reconciliation in the request and answers 200 with the
// summary; per-election failures are listed in its errors.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SyncRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.logger.InfoContext(ctx, "manual sync requested",
		"request_id", requestID,
		"principal", requestcontext.Principal(ctx).ID,
		"client_ip", requestcontext.ClientIP(ctx),
		"live", req.Live,
		"results_only", req.ResultsOnly,
	)
	sum := h.sync.Run(ctx, req.toRequest())
	httputil.WriteJSON(w, http.StatusOK, sum)
}
