package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"qrcall/internal/calls/models"
	idmodels "qrcall/internal/identity/models"
	"qrcall/internal/masked"
	"qrcall/internal/notify"
	"qrcall/internal/rtc"
)

// Store persists calls. UpdateIfStatus is the only write path after Create:
// it fails with sentinel.ErrConflict when the stored status is no longer expected.
type Store interface {
	Create(ctx context.Context, call *models.Call) error
	FindByID(ctx context.Context, callID string) (*models.Call, error)
	UpdateIfStatus(ctx context.Context, call *models.Call, expected models.Status) error
	List(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error)
	ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Call, error)
}

// Resolver maps a QR to its callable device and counts calls against it.
type Resolver interface {
	Resolve(ctx context.Context, qrID string) (*idmodels.Resolution, error)
	RecordCall(ctx context.Context, qrID string, emergency bool) error
}

type CredentialIssuer interface {
	Issue(ctx context.Context, channel, uid string, role rtc.Role, ttl time.Duration) (*rtc.Credential, error)
}

type MaskedRelay interface {
	Start(ctx context.Context, req masked.StartRequest) (*masked.Session, error)
	End(ctx context.Context, sessionID string) (*masked.EndResult, error)
	Status(ctx context.Context, sessionID string) (*masked.SessionStatus, error)
}

// Notifier enqueues a push without waiting for delivery.
type Notifier interface {
	Notify(callID, identity string, msg notify.Message) error
}

// TokenIssuer mints the call-scoped token handed to anonymous callers.
type TokenIssuer interface {
	GenerateCallerToken(callID string, expiresIn time.Duration) (string, error)
}

type Metrics interface {
	IncInitiated(method string, emergency bool)
	IncFallback()
	IncTransition(to, source string)
	IncConflict(source string)
	IncWebhook(kind, outcome string)
	IncSwept(to string)
	ObserveEstablish(method string, start time.Time)
}
