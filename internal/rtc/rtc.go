// Package rtc issues per-participant credentials for direct in-app calls.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tencentyun/tls-sig-api-v2-golang/tencentyun"
)

type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

// Room privilege bits understood by TRTC.
const (
	privCreate      uint32 = 1
	privJoin        uint32 = 2
	privSendAudio   uint32 = 4
	privRecvAudio   uint32 = 8
	privSendVideo   uint32 = 16
	privRecvVideo   uint32 = 32
	privSendSubView uint32 = 64
	privRecvSubView uint32 = 128
)

func (r Role) privileges() uint32 {
	if r == RoleSubscriber {
		return privJoin | privRecvAudio | privRecvVideo | privRecvSubView
	}
	return privCreate | privJoin | privSendAudio | privRecvAudio | privSendVideo | privRecvVideo |
		privSendSubView | privRecvSubView
}

var ErrNotConfigured = errors.New("rtc credentials are not configured")

// Credential lets one participant join one channel until ExpiresAt.
type Credential struct {
	AppID     int
	UID       string
	Channel   string
	UserSig   string
	RoomKey   string
	ExpiresAt time.Time
}

// Issuer is stateless: the same inputs always yield a usable credential.
type Issuer interface {
	Issue(ctx context.Context, channel, uid string, role Role, ttl time.Duration) (*Credential, error)
}

// TRTC signs Tencent TRTC UserSigs and room-scoped PrivateMapKeys locally.
type TRTC struct {
	appID  int
	secret string
	now    func() time.Time
}

type Option func(*TRTC)

func WithClock(now func() time.Time) Option {
	return func(t *TRTC) {
		t.now = now
	}
}

func NewTRTC(appID int, secret string, opts ...Option) *TRTC {
	t := &TRTC{appID: appID, secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TRTC) Configured() bool {
	return t.appID != 0 && t.secret != ""
}

func (t *TRTC) Issue(ctx context.Context, channel, uid string, role Role, ttl time.Duration) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !t.Configured() {
		return nil, ErrNotConfigured
	}
	if channel == "" || uid == "" {
		return nil, fmt.Errorf("issue rtc credential: channel and uid are required")
	}
	expire := int(ttl / time.Second)
	if expire <= 0 {
		return nil, fmt.Errorf("issue rtc credential: ttl must be positive")
	}

	sig, err := tencentyun.GenUserSig(t.appID, t.secret, uid, expire)
	if err != nil {
		return nil, fmt.Errorf("generate user sig: %w", err)
	}
	roomKey, err := tencentyun.GenPrivateMapKeyWithStringRoomID(t.appID, t.secret, uid, expire, channel, role.privileges())
	if err != nil {
		return nil, fmt.Errorf("generate room key: %w", err)
	}
	return &Credential{
		AppID:     t.appID,
		UID:       uid,
		Channel:   channel,
		UserSig:   sig,
		RoomKey:   roomKey,
		ExpiresAt: t.now().Add(ttl),
	}, nil
}
