package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"qrcall/internal/identity/models"
	dErrors "qrcall/pkg/domain-errors"
	"qrcall/pkg/platform/sentinel"
)

type Store interface {
	FindQR(ctx context.Context, qrID string) (*models.QRCode, error)
	FindDevice(ctx context.Context, deviceID string) (*models.Device, error)
	IncrementScanCount(ctx context.Context, qrID string, at time.Time) error
	IncrementCallCounts(ctx context.Context, qrID string, emergency bool, at time.Time) error
}

// Service resolves QR codes to callable devices.
type Service struct {
	store           Store
	logger          *slog.Logger
	maskedAvailable bool
	now             func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMaskedAvailable advertises masked calling in public QR info.
func WithMaskedAvailable(available bool) Option {
	return func(s *Service) {
		s.maskedAvailable = available
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve checks, in order, that the QR exists and is active, is linked,
// points at an active device, and that the device accepts anonymous calls.
// It never writes.
func (s *Service) Resolve(ctx context.Context, qrID string) (*models.Resolution, error) {
	qr, err := s.store.FindQR(ctx, qrID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrQRNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load QR code")
	}
	if !qr.Active {
		return nil, models.ErrQRNotFound()
	}
	if !qr.IsLinked() {
		return nil, models.ErrQRNotLinked(qr.Status)
	}

	device, err := s.store.FindDevice(ctx, qr.Link.DeviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrDeviceNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load device")
	}
	if !device.IsActive() {
		return nil, models.ErrDeviceNotFound()
	}
	if !device.Settings.AllowAnonymousCalls {
		return nil, models.ErrAnonymousCallsDisabled()
	}

	return &models.Resolution{QR: qr, Device: device, OwnerID: qr.Link.OwnerID}, nil
}

// Lookup resolves a QR for the scanning page and counts the scan.
func (s *Service) Lookup(ctx context.Context, qrID string) (*models.PublicInfo, error) {
	res, err := s.Resolve(ctx, qrID)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementScanCount(ctx, qrID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to increment scan count", "qr_id", qrID, "error", err)
	}

	info := &models.PublicInfo{
		QRID:                res.QR.ID,
		DeviceName:          res.Device.Name,
		VehicleDescription:  res.Device.VehicleDescription,
		AllowAnonymousCalls: res.Device.Settings.AllowAnonymousCalls,
		AvailableMethods:    s.AvailableMethods(),
	}
	if res.QR.Privacy.ShowOwnerName {
		info.OwnerName = res.Device.OwnerName
	}
	if res.QR.Privacy.ShowPlate {
		info.VehiclePlate = res.Device.VehiclePlate
	}
	return info, nil
}

// RecordCall bumps the QR's call counters after a call record exists.
func (s *Service) RecordCall(ctx context.Context, qrID string, emergency bool) error {
	if err := s.store.IncrementCallCounts(ctx, qrID, emergency, s.now()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update QR usage")
	}
	return nil
}

func (s *Service) AvailableMethods() []string {
	if s.maskedAvailable {
		return []string{"direct", "masked"}
	}
	return []string{"direct"}
}
