package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"qrcall/internal/calls/models"
	"qrcall/pkg/platform/sentinel"
)

// Postgres persists calls. Every status change goes through UpdateIfStatus,
// a single conditional UPDATE keyed on the expected current status.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const callColumns = `
	call_id, receiver_id, qr_id, channel_name, call_type, call_method, requested_method, status,
	caller_info, device_info, metadata, masked_session, fallback_reason, quality,
	initiated_at, answered_at, ended_at, duration, ended_by, is_emergency
`

func (s *Postgres) Create(ctx context.Context, call *models.Call) error {
	cols, err := encode(call)
	if err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	query := `
		INSERT INTO calls (` + callColumns + `, device_id, emergency_type, urgency_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err = s.db.ExecContext(ctx, query,
		call.ID, call.ReceiverID, call.QRID, call.ChannelName, call.CallType, call.CallMethod,
		call.RequestedMethod, call.Status, cols.caller, cols.device, cols.metadata, cols.masked,
		call.FallbackReason, cols.quality, call.Timing.InitiatedAt, call.Timing.AnsweredAt,
		call.Timing.EndedAt, call.Timing.Duration, call.EndedBy, call.IsEmergency,
		call.Device.DeviceID, call.Caller.EmergencyType, call.Caller.UrgencyLevel,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create call %s: %w", call.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, callID string) (*models.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	call, err := scanCall(s.db.QueryRowContext(ctx, query, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find call: %w", err)
	}
	return call, nil
}

// UpdateIfStatus writes the mutable fields of call only if the stored status
// still equals expected. A lost race returns sentinel.ErrConflict.
func (s *Postgres) UpdateIfStatus(ctx context.Context, call *models.Call, expected models.Status) error {
	cols, err := encode(call)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	query := `
		UPDATE calls
		SET status = $3, call_method = $4, caller_info = $5, masked_session = $6, fallback_reason = $7,
		    quality = $8, answered_at = $9, ended_at = $10, duration = $11, ended_by = $12,
		    updated_at = NOW()
		WHERE call_id = $1 AND status = $2
	`
	res, err := s.db.ExecContext(ctx, query,
		call.ID, expected, call.Status, call.CallMethod, cols.caller, cols.masked, call.FallbackReason,
		cols.quality, call.Timing.AnsweredAt, call.Timing.EndedAt, call.Timing.Duration, call.EndedBy,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update call rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM calls WHERE call_id = $1)`, call.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check call exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("call %s no longer %s: %w", call.ID, expected, sentinel.ErrConflict)
}

func (s *Postgres) List(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error) {
	where, args := historyWhere(filter)

	summaryQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_emergency),
		       COUNT(*) FILTER (WHERE answered_at IS NOT NULL OR status = 'answered'),
		       COUNT(*) FILTER (WHERE status = 'missed'),
		       COUNT(*) FILTER (WHERE status = 'rejected' AND answered_at IS NULL),
		       COUNT(*) FILTER (WHERE call_method = 'direct'),
		       COUNT(*) FILTER (WHERE call_method = 'masked')
		FROM calls ` + where
	page := &models.HistoryPage{}
	sum := &page.Summary
	err := s.db.QueryRowContext(ctx, summaryQuery, args...).Scan(
		&sum.TotalCalls, &sum.EmergencyCalls, &sum.AnsweredCalls, &sum.MissedCalls,
		&sum.RejectedCalls, &sum.DirectCalls, &sum.MaskedCalls,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize calls: %w", err)
	}
	page.Total = sum.TotalCalls

	n := len(args)
	listQuery := fmt.Sprintf(`SELECT %s FROM calls %s ORDER BY initiated_at DESC LIMIT $%d OFFSET $%d`,
		callColumns, where, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, listQuery, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()
	page.Calls, err = scanCalls(rows)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return page, nil
}

func (s *Postgres) ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Call, error) {
	query := `SELECT ` + callColumns + `
		FROM calls
		WHERE status = $1 AND initiated_at < $2
		ORDER BY initiated_at
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, status, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale calls: %w", err)
	}
	defer rows.Close()
	calls, err := scanCalls(rows)
	if err != nil {
		return nil, fmt.Errorf("list stale calls: %w", err)
	}
	return calls, nil
}

func historyWhere(f models.HistoryFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ReceiverID != "" {
		add("receiver_id = $%d", f.ReceiverID)
	}
	if f.DeviceID != "" {
		add("device_id = $%d", f.DeviceID)
	}
	if f.EmergencyOnly {
		conds = append(conds, "is_emergency")
	}
	if f.EmergencyType != "" {
		add("emergency_type = $%d", f.EmergencyType)
	}
	if f.CallMethod != "" {
		add("call_method = $%d", f.CallMethod)
	}
	if f.From != nil {
		add("initiated_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("initiated_at <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

type encoded struct {
	caller, device, metadata []byte
	masked, quality          []byte
}

func encode(call *models.Call) (encoded, error) {
	var (
		out encoded
		err error
	)
	if out.caller, err = json.Marshal(call.Caller); err != nil {
		return out, fmt.Errorf("marshal caller info: %w", err)
	}
	if out.device, err = json.Marshal(call.Device); err != nil {
		return out, fmt.Errorf("marshal device info: %w", err)
	}
	if out.metadata, err = json.Marshal(call.Metadata); err != nil {
		return out, fmt.Errorf("marshal metadata: %w", err)
	}
	if call.Masked != nil {
		if out.masked, err = json.Marshal(call.Masked); err != nil {
			return out, fmt.Errorf("marshal masked session: %w", err)
		}
	}
	if call.Quality != nil {
		if out.quality, err = json.Marshal(call.Quality); err != nil {
			return out, fmt.Errorf("marshal quality: %w", err)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*models.Call, error) {
	var (
		c                    models.Call
		caller, device, meta []byte
		masked, quality      []byte
		answeredAt, endedAt  sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.ReceiverID, &c.QRID, &c.ChannelName, &c.CallType, &c.CallMethod, &c.RequestedMethod,
		&c.Status, &caller, &device, &meta, &masked, &c.FallbackReason, &quality,
		&c.Timing.InitiatedAt, &answeredAt, &endedAt, &c.Timing.Duration, &c.EndedBy, &c.IsEmergency,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(caller, &c.Caller); err != nil {
		return nil, fmt.Errorf("unmarshal caller info: %w", err)
	}
	if err := json.Unmarshal(device, &c.Device); err != nil {
		return nil, fmt.Errorf("unmarshal device info: %w", err)
	}
	if err := json.Unmarshal(meta, &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(masked) > 0 {
		c.Masked = &models.MaskedSession{}
		if err := json.Unmarshal(masked, c.Masked); err != nil {
			return nil, fmt.Errorf("unmarshal masked session: %w", err)
		}
	}
	if len(quality) > 0 {
		c.Quality = &models.Quality{}
		if err := json.Unmarshal(quality, c.Quality); err != nil {
			return nil, fmt.Errorf("unmarshal quality: %w", err)
		}
	}
	if answeredAt.Valid {
		t := answeredAt.Time
		c.Timing.AnsweredAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.Timing.EndedAt = &t
	}
	return &c, nil
}

func scanCalls(rows *sql.Rows) ([]*models.Call, error) {
	var calls []*models.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}
