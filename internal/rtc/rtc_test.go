package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTRTC_Issue(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewTRTC(1400000001, "5bd2850fff3ecb11d7c805251c51ee463a25727bddc2385f3fa8bfee1bb93b5e", WithClock(func() time.Time { return now }))

	caller, err := issuer.Issue(context.Background(), "emergency_c1", "caller_c1", RolePublisher, time.Hour)
	require.NoError(t, err)
	receiver, err := issuer.Issue(context.Background(), "emergency_c1", "owner_u1", RolePublisher, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1400000001, caller.AppID)
	assert.Equal(t, "caller_c1", caller.UID)
	assert.Equal(t, "emergency_c1", caller.Channel)
	assert.NotEmpty(t, caller.UserSig)
	assert.NotEmpty(t, caller.RoomKey)
	assert.Equal(t, now.Add(time.Hour), caller.ExpiresAt)
	assert.NotEqual(t, caller.UserSig, receiver.UserSig)
}

func TestTRTC_IssueFailures(t *testing.T) {
	ctx := context.Background()

	_, err := NewTRTC(0, "").Issue(ctx, "ch", "uid", RolePublisher, time.Hour)
	assert.ErrorIs(t, err, ErrNotConfigured)

	issuer := NewTRTC(1, "secret")
	_, err = issuer.Issue(ctx, "", "uid", RolePublisher, time.Hour)
	assert.Error(t, err)
	_, err = issuer.Issue(ctx, "ch", "uid", RolePublisher, 0)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = issuer.Issue(cancelled, "ch", "uid", RolePublisher, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRolePrivileges(t *testing.T) {
	assert.Equal(t, uint32(255), RolePublisher.privileges())
	assert.Zero(t, RoleSubscriber.privileges()&(privSendAudio|privSendVideo))
}
