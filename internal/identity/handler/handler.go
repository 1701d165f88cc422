package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"qrcall/internal/identity/models"
	"qrcall/internal/platform/middleware"
	dErrors "qrcall/pkg/domain-errors"
	"qrcall/pkg/platform/httputil"
)

type Service interface {
	Lookup(ctx context.Context, qrID string) (*models.PublicInfo, error)
}

// Handler serves the public QR lookup used by the scanning page.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/qr/info/{qrId}", h.handleInfo)
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	qrID := strings.TrimSpace(chi.URLParam(r, "qrId"))
	if qrID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "qrId is required"))
		return
	}

	info, err := h.svc.Lookup(ctx, qrID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "qr lookup failed",
				"request_id", middleware.GetRequestID(ctx),
				"qr_id", qrID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "data": info})
}
