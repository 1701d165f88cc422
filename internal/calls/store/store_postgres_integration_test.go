//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrcall/internal/calls/models"
	"qrcall/internal/calls/store"
	dErrors "qrcall/pkg/domain-errors"
	"qrcall/pkg/platform/sentinel"
	"qrcall/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Now().UTC().Truncate(time.Second)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "calls"))
}

func (s *PostgresStoreSuite) newCall(id string) *models.Call {
	return &models.Call{
		ID:              id,
		ReceiverID:      "U1",
		QRID:            "Q1",
		ChannelName:     models.ChannelNameFor(id),
		CallType:        models.CallTypeVideo,
		CallMethod:      models.CallMethodDirect,
		RequestedMethod: models.CallMethodMasked,
		Status:          models.StatusInitiated,
		Caller: models.CallerInfo{
			Name: "Anonymous Caller", Phone: "+15550001111",
			EmergencyType: models.EmergencyTheft, UrgencyLevel: models.UrgencyCritical,
		},
		Device:         models.DeviceSnapshot{DeviceID: "D1", VehiclePlate: "ABC-123"},
		Timing:         models.Timing{InitiatedAt: s.now},
		IsEmergency:    true,
		FallbackReason: "relay down",
		Metadata:       models.Metadata{ClientIP: "10.0.0.1", Browser: "Firefox"},
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	call := s.newCall("c1")
	s.Require().NoError(s.store.Create(ctx, call))
	s.ErrorIs(s.store.Create(ctx, call), sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(call.Caller, found.Caller)
	s.Equal(call.Device, found.Device)
	s.Equal(call.Metadata, found.Metadata)
	s.Equal(models.CallMethodMasked, found.RequestedMethod)
	s.Nil(found.Masked)
	s.True(found.Timing.InitiatedAt.Equal(s.now))

	_, err = s.store.FindByID(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateIfStatus() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newCall("c1")))

	call, err := s.store.FindByID(ctx, "c1")
	s.Require().NoError(err)
	s.Require().NoError(call.Answer(s.now.Add(2 * time.Second)))
	call.AttachMaskedSession(models.MaskedSession{SessionID: "m-1", CallerMaskedNumber: "+1555"})
	s.Require().NoError(s.store.UpdateIfStatus(ctx, call, models.StatusInitiated))

	found, err := s.store.FindByID(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(models.StatusAnswered, found.Status)
	s.Require().NotNil(found.Masked)
	s.Equal("m-1", found.Masked.SessionID)

	err = s.store.UpdateIfStatus(ctx, call, models.StatusInitiated)
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.store.UpdateIfStatus(ctx, s.newCall("ghost"), models.StatusInitiated)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentAnswerAndEnd() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newCall("c1")))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	for _, apply := range []func(*models.Call) error{
		func(c *models.Call) error { return c.Answer(s.now.Add(time.Second)) },
		func(c *models.Call) error { return c.End(s.now.Add(time.Second), models.EndedBySystem) },
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			call, err := s.store.FindByID(ctx, "c1")
			if err == nil {
				err = apply(call)
			}
			if err == nil {
				err = s.store.UpdateIfStatus(ctx, call, models.StatusInitiated)
			}
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var wins, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeBadRequest):
			rejected++
		}
	}
	s.Equal(1, wins)
	s.Equal(1, rejected)

	final, err := s.store.FindByID(ctx, "c1")
	s.Require().NoError(err)
	if final.Timing.AnsweredAt != nil && final.Timing.EndedAt != nil {
		s.False(final.Timing.AnsweredAt.After(*final.Timing.EndedAt))
	}
}

func (s *PostgresStoreSuite) TestListAndStale() {
	ctx := context.Background()
	first := s.newCall("c1")
	first.Timing.InitiatedAt = s.now.Add(-time.Hour)
	s.Require().NoError(s.store.Create(ctx, first))
	second := s.newCall("c2")
	second.IsEmergency = false
	second.Caller.EmergencyType = models.EmergencyGeneral
	s.Require().NoError(s.store.Create(ctx, second))

	page, err := s.store.List(ctx, models.HistoryFilter{ReceiverID: "U1", Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	s.Equal(1, page.Summary.EmergencyCalls)
	s.Require().Len(page.Calls, 2)
	s.Equal("c2", page.Calls[0].ID)

	page, err = s.store.List(ctx, models.HistoryFilter{ReceiverID: "U1", EmergencyType: models.EmergencyTheft, Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, page.Total)

	stale, err := s.store.ListStale(ctx, models.StatusInitiated, s.now.Add(-time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(stale, 1)
	s.Equal("c1", stale[0].ID)
}
