package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/tableside/internal/models"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Entry is one auth event. Identity is explicit; nothing is read from context.
type Entry struct {
	TenantID  uuid.UUID
	UserID    *uuid.UUID
	Action    string
	Details   map[string]interface{}
	IPAddress string
}

func (s *Service) Log(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil || entry.Details == nil {
		details = []byte("{}")
	}

	var ip *netip.Addr
	if entry.IPAddress != "" {
		parsed, err := netip.ParseAddr(entry.IPAddress)
		if err == nil {
			ip = &parsed
		}
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, user_id, action, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.TenantID, entry.UserID, entry.Action, details, ip,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

type Query struct {
	StartDate *time.Time
	EndDate   *time.Time
	Action    string
	UserID    *uuid.UUID
	Limit     int
	Offset    int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// where renders the filter as a WHERE clause with positional args, starting
// from the mandatory tenant scope.
func (q Query) where(tenantID uuid.UUID) (string, []interface{}) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Action != "" {
		add("action = $%d", q.Action)
	}
	if q.UserID != nil {
		add("user_id = $%d", *q.UserID)
	}
	if q.StartDate != nil {
		add("created_at >= $%d", *q.StartDate)
	}
	if q.EndDate != nil {
		add("created_at <= $%d", *q.EndDate)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a tenant's events, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, q Query) ([]models.AuditLog, error) {
	if q.Limit <= 0 || q.Limit > maxLimit {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where, args := q.where(tenantID)
	args = append(args, q.Limit, q.Offset)
	sql := `SELECT id, tenant_id, user_id, action, details, ip_address, created_at FROM audit_logs` +
		where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.AuditLog])
	if err != nil {
		return nil, fmt.Errorf("scan audit logs: %w", err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
