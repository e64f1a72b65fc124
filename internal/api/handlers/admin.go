package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/audit"
	"github.com/nikhilbhutani/tableside/internal/auth"
	"github.com/nikhilbhutani/tableside/internal/models"
)

type AuditLister interface {
	List(ctx context.Context, tenantID uuid.UUID, q audit.Query) ([]models.AuditLog, error)
}

type AdminHandler struct {
	audit  AuditLister
	logger *zap.Logger
}

func NewAdminHandler(audit AuditLister, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{audit: audit, logger: logger}
}

// AuditLogs lists auth events for the caller's own tenant.
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := audit.Query{
		Action: r.URL.Query().Get("action"),
	}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		q.UserID = &id
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err == nil {
			q.StartDate = &t
		}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err == nil {
			q.EndDate = &t
		}
	}

	logs, err := h.audit.List(r.Context(), tenantID, q)
	if err != nil {
		h.logger.Error("list audit logs", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs, "count": len(logs)})
}
