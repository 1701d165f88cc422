package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"qrcall/internal/identity/models"
	"qrcall/pkg/platform/sentinel"
	txcontext "qrcall/pkg/platform/tx"
)

// Postgres reads QR codes and devices and applies atomic counter increments.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins the transaction carried by ctx, if any.
func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) FindQR(ctx context.Context, qrID string) (*models.QRCode, error) {
	query := `
		SELECT qr_id, status, is_active, owner_id, device_id, linked_at, show_owner_name, show_plate,
		       scan_count, call_count, emergency_call_count, last_scanned_at, last_called_at
		FROM qr_codes
		WHERE qr_id = $1
	`
	var (
		qr                 models.QRCode
		ownerID, deviceID  sql.NullString
		linkedAt           sql.NullTime
		lastScan, lastCall sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, qrID).Scan(
		&qr.ID, &qr.Status, &qr.Active, &ownerID, &deviceID, &linkedAt,
		&qr.Privacy.ShowOwnerName, &qr.Privacy.ShowPlate,
		&qr.Usage.ScanCount, &qr.Usage.CallCount, &qr.Usage.EmergencyCallCount,
		&lastScan, &lastCall,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find qr: %w", err)
	}
	if ownerID.Valid || deviceID.Valid || linkedAt.Valid {
		qr.Link = &models.Link{OwnerID: ownerID.String, DeviceID: deviceID.String, LinkedAt: linkedAt.Time}
	}
	qr.Usage.LastScannedAt = nullTime(lastScan)
	qr.Usage.LastCalledAt = nullTime(lastCall)
	return &qr, nil
}

func (s *Postgres) FindDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `
		SELECT device_id, owner_id, owner_name, owner_phone, name, vehicle_plate, vehicle_description,
		       status, allow_anonymous, auto_answer, emergency_contacts, enabled_call_methods
		FROM devices
		WHERE device_id = $1
	`
	var (
		d        models.Device
		contacts []byte
		methods  pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&d.ID, &d.OwnerID, &d.OwnerName, &d.OwnerPhone, &d.Name, &d.VehiclePlate, &d.VehicleDescription,
		&d.Status, &d.Settings.AllowAnonymousCalls, &d.Settings.AutoAnswer, &contacts, &methods,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &d.Settings.EmergencyContacts); err != nil {
			return nil, fmt.Errorf("decode emergency contacts: %w", err)
		}
	}
	d.Settings.EnabledCallMethods = []string(methods)
	return &d, nil
}

// SaveDevice upserts a device. Used by seeding and tests.
func (s *Postgres) SaveDevice(ctx context.Context, d *models.Device) error {
	contacts, err := json.Marshal(d.Settings.EmergencyContacts)
	if err != nil {
		return fmt.Errorf("encode emergency contacts: %w", err)
	}
	if d.Settings.EmergencyContacts == nil {
		contacts = []byte("[]")
	}
	query := `
		INSERT INTO devices (device_id, owner_id, owner_name, owner_phone, name, vehicle_plate, vehicle_description,
		                     status, allow_anonymous, auto_answer, emergency_contacts, enabled_call_methods)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (device_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			owner_name = EXCLUDED.owner_name,
			owner_phone = EXCLUDED.owner_phone,
			name = EXCLUDED.name,
			vehicle_plate = EXCLUDED.vehicle_plate,
			vehicle_description = EXCLUDED.vehicle_description,
			status = EXCLUDED.status,
			allow_anonymous = EXCLUDED.allow_anonymous,
			auto_answer = EXCLUDED.auto_answer,
			emergency_contacts = EXCLUDED.emergency_contacts,
			enabled_call_methods = EXCLUDED.enabled_call_methods
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		d.ID, d.OwnerID, d.OwnerName, d.OwnerPhone, d.Name, d.VehiclePlate, d.VehicleDescription,
		d.Status, d.Settings.AllowAnonymousCalls, d.Settings.AutoAnswer, contacts,
		pq.Array(d.Settings.EnabledCallMethods),
	)
	if err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}

// SaveQR upserts a QR code. A second QR linked to the same device violates
// the partial unique index and is reported as sentinel.ErrConflict.
func (s *Postgres) SaveQR(ctx context.Context, qr *models.QRCode) error {
	var ownerID, deviceID sql.NullString
	var linkedAt sql.NullTime
	if qr.Link != nil {
		ownerID = sql.NullString{String: qr.Link.OwnerID, Valid: qr.Link.OwnerID != ""}
		deviceID = sql.NullString{String: qr.Link.DeviceID, Valid: qr.Link.DeviceID != ""}
		linkedAt = sql.NullTime{Time: qr.Link.LinkedAt, Valid: !qr.Link.LinkedAt.IsZero()}
	}
	query := `
		INSERT INTO qr_codes (qr_id, status, is_active, owner_id, device_id, linked_at, show_owner_name, show_plate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (qr_id) DO UPDATE SET
			status = EXCLUDED.status,
			is_active = EXCLUDED.is_active,
			owner_id = EXCLUDED.owner_id,
			device_id = EXCLUDED.device_id,
			linked_at = EXCLUDED.linked_at,
			show_owner_name = EXCLUDED.show_owner_name,
			show_plate = EXCLUDED.show_plate
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		qr.ID, qr.Status, qr.Active, ownerID, deviceID, linkedAt, qr.Privacy.ShowOwnerName, qr.Privacy.ShowPlate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save qr: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save qr: %w", err)
	}
	return nil
}

func (s *Postgres) IncrementScanCount(ctx context.Context, qrID string, at time.Time) error {
	return s.exec(ctx, "increment scan count", `
		UPDATE qr_codes SET scan_count = scan_count + 1, last_scanned_at = $2
		WHERE qr_id = $1
	`, qrID, at)
}

func (s *Postgres) IncrementCallCounts(ctx context.Context, qrID string, emergency bool, at time.Time) error {
	return s.exec(ctx, "increment call counts", `
		UPDATE qr_codes SET
			call_count = call_count + 1,
			emergency_call_count = emergency_call_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			last_called_at = $3
		WHERE qr_id = $1
	`, qrID, emergency, at)
}

func (s *Postgres) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
