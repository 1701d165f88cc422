package store

import (
	"context"
	"time"

	"qrcall/internal/identity/models"
)

// Saver is implemented by both stores.
type Saver interface {
	SaveDevice(ctx context.Context, d *models.Device) error
	SaveQR(ctx context.Context, qr *models.QRCode) error
}

// SeedDemo links QR "DEMO-QR-1" to an active demo device so a development
// instance can place calls without the inventory service.
func SeedDemo(ctx context.Context, s Saver, ownerID string) (*models.QRCode, *models.Device, error) {
	device := &models.Device{
		ID:                 "DEMO-DEVICE-1",
		OwnerID:            ownerID,
		OwnerName:          "Demo Owner",
		OwnerPhone:         "5550100000",
		Name:               "Demo Car",
		VehiclePlate:       "DEMO-123",
		VehicleDescription: "Blue hatchback",
		Status:             models.DeviceStatusActive,
		Settings: models.DeviceSettings{
			AllowAnonymousCalls: true,
			EnabledCallMethods:  []string{"direct", "masked"},
		},
	}
	if err := s.SaveDevice(ctx, device); err != nil {
		return nil, nil, err
	}
	qr := &models.QRCode{
		ID:      "DEMO-QR-1",
		Status:  models.QRStatusLinked,
		Active:  true,
		Link:    &models.Link{OwnerID: ownerID, DeviceID: device.ID, LinkedAt: time.Now()},
		Privacy: models.Privacy{ShowOwnerName: true, ShowPlate: true},
	}
	if err := s.SaveQR(ctx, qr); err != nil {
		return nil, nil, err
	}
	return qr, device, nil
}
