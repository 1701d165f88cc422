package models

import (
	"slices"
	"time"
)

type QRStatus string

const (
	QRStatusAvailable QRStatus = "available"
	QRStatusLinked    QRStatus = "linked"
	QRStatusSuspended QRStatus = "suspended"
	QRStatusDamaged   QRStatus = "damaged"
)

type DeviceStatus string

const (
	DeviceStatusActive      DeviceStatus = "active"
	DeviceStatusInactive    DeviceStatus = "inactive"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
	DeviceStatusRemoved     DeviceStatus = "removed"
)

// QRCode is a printed code affixed to a vehicle.
//
// Invariants:
//   - Status == linked iff Link is fully populated
//   - a QR is linked to at most one device at a time
//   - an inactive QR is never resolved, whatever its status
type QRCode struct {
	ID      string   `json:"qrId"`
	Status  QRStatus `json:"status"`
	Active  bool     `json:"isActive"`
	Link    *Link    `json:"link,omitempty"`
	Privacy Privacy  `json:"privacy"`
	Usage   Usage    `json:"usage"`
}

type Link struct {
	OwnerID  string    `json:"ownerId"`
	DeviceID string    `json:"deviceId"`
	LinkedAt time.Time `json:"linkedAt"`
}

func (l *Link) complete() bool {
	return l != nil && l.OwnerID != "" && l.DeviceID != "" && !l.LinkedAt.IsZero()
}

type Privacy struct {
	ShowOwnerName bool `json:"showOwnerName"`
	ShowPlate     bool `json:"showPlate"`
}

type Usage struct {
	ScanCount          int64      `json:"scanCount"`
	CallCount          int64      `json:"callCount"`
	EmergencyCallCount int64      `json:"emergencyCallCount"`
	LastScannedAt      *time.Time `json:"lastScannedAt,omitempty"`
	LastCalledAt       *time.Time `json:"lastCalledAt,omitempty"`
}

// IsLinked reports whether the QR is linked with a complete link target.
func (q *QRCode) IsLinked() bool {
	return q.Status == QRStatusLinked && q.Link.complete()
}

// Device is the vehicle unit a QR is linked to. It is owned by exactly one identity.
type Device struct {
	ID                 string         `json:"deviceId"`
	OwnerID            string         `json:"ownerId"`
	OwnerName          string         `json:"ownerName"`
	OwnerPhone         string         `json:"-"`
	Name               string         `json:"deviceName"`
	VehiclePlate       string         `json:"vehiclePlate"`
	VehicleDescription string         `json:"vehicleDescription"`
	Status             DeviceStatus   `json:"status"`
	Settings           DeviceSettings `json:"settings"`
}

type DeviceSettings struct {
	AllowAnonymousCalls bool               `json:"allowAnonymousCalls"`
	EmergencyContacts   []EmergencyContact `json:"emergencyContacts,omitempty"`
	AutoAnswer          bool               `json:"autoAnswer"`
	EnabledCallMethods  []string           `json:"enabledCallMethods"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship,omitempty"`
}

func (d *Device) IsActive() bool {
	return d.Status == DeviceStatusActive
}

// ReceiverPhone is the number a masked relay should ring: the first emergency
// contact with a phone, else the owner's own number.
func (d *Device) ReceiverPhone() string {
	for _, c := range d.Settings.EmergencyContacts {
		if c.Phone != "" {
			return c.Phone
		}
	}
	return d.OwnerPhone
}

// AllowsMethod reports whether the owner enabled a call method on this device.
func (d *Device) AllowsMethod(method string) bool {
	return slices.Contains(d.Settings.EnabledCallMethods, method)
}

// Resolution is the outcome of resolving a QR to its callable device.
type Resolution struct {
	QR      *QRCode
	Device  *Device
	OwnerID string
}

// PublicInfo is what a scanner may see about a QR before calling.
type PublicInfo struct {
	QRID                string   `json:"qrId"`
	OwnerName           string   `json:"ownerName,omitempty"`
	VehiclePlate        string   `json:"vehiclePlate,omitempty"`
	VehicleDescription  string   `json:"vehicleDescription,omitempty"`
	DeviceName          string   `json:"deviceName"`
	AllowAnonymousCalls bool     `json:"allowAnonymousCalls"`
	AvailableMethods    []string `json:"availableCallMethods"`
}
