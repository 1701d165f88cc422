package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qrcall/internal/identity/models"
	"qrcall/pkg/platform/sentinel"
)

// InMemory keeps QR codes and devices in process memory. Counters are updated
// under the write lock so concurrent increments are never lost.
type InMemory struct {
	mu      sync.RWMutex
	qrs     map[string]*models.QRCode
	devices map[string]*models.Device
}

func NewInMemory() *InMemory {
	return &InMemory{
		qrs:     make(map[string]*models.QRCode),
		devices: make(map[string]*models.Device),
	}
}

// SaveQR inserts or replaces a QR code. Linking a QR to a device already
// linked by another QR is rejected with sentinel.ErrConflict.
func (s *InMemory) SaveQR(_ context.Context, qr *models.QRCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if qr.IsLinked() {
		for id, other := range s.qrs {
			if id != qr.ID && other.IsLinked() && other.Link.DeviceID == qr.Link.DeviceID {
				return fmt.Errorf("device %s already linked: %w", qr.Link.DeviceID, sentinel.ErrConflict)
			}
		}
	}
	cp := *qr
	s.qrs[qr.ID] = &cp
	return nil
}

func (s *InMemory) SaveDevice(_ context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *device
	s.devices[device.ID] = &cp
	return nil
}

func (s *InMemory) FindQR(_ context.Context, qrID string) (*models.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qr, ok := s.qrs[qrID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *qr
	return &cp, nil
}

func (s *InMemory) FindDevice(_ context.Context, deviceID string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *InMemory) IncrementScanCount(_ context.Context, qrID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qr, ok := s.qrs[qrID]
	if !ok {
		return sentinel.ErrNotFound
	}
	qr.Usage.ScanCount++
	qr.Usage.LastScannedAt = &at
	return nil
}

func (s *InMemory) IncrementCallCounts(_ context.Context, qrID string, emergency bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qr, ok := s.qrs[qrID]
	if !ok {
		return sentinel.ErrNotFound
	}
	qr.Usage.CallCount++
	if emergency {
		qr.Usage.EmergencyCallCount++
	}
	qr.Usage.LastCalledAt = &at
	return nil
}
