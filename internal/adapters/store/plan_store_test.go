package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/cache"
	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
	apperrors "github.com/zatekoja/itineraryconcierge/pkg/errors"
)

const itinerary = `{"destination":"Kyoto","schedule":[{"day":1,"activities":[]}]}`

func newStore() (*PlanStore, *cache.MemoryAdapter) {
	mem := cache.NewMemoryAdapter(time.Minute)
	return NewPlanStore(mem, time.Hour), mem
}

func plan(t *testing.T) *entities.StoredPlan {
	t.Helper()
	record, err := entities.NormalizeSnapshot([]byte(itinerary))
	require.NoError(t, err)
	return entities.NewStoredPlan(*record, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestPlanStore_GetMissingIsNotFound(t *testing.T) {
	s, _ := newStore()

	_, err := s.Get(context.Background(), "travel_plan:nope")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "got %v", err)
}

func TestPlanStore_SaveWritesEnvelope(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "travel_plan:a", plan(t)))

	raw, err := mem.Get(ctx, "travel_plan:a")
	require.NoError(t, err)
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.JSONEq(t, "1", string(envelope["schema_version"]))
	assert.JSONEq(t, "1", string(envelope["version"]))
	assert.Contains(t, envelope, "updated_at")

	got, err := s.Get(ctx, "travel_plan:a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.JSONEq(t, itinerary, string(got.Plan.Itinerary))
}

func TestPlanStore_GetReadsLegacyRecord(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "travel_plan:old", []byte(`{"itinerary":`+itinerary+`,"workflow_data":{"step":3}}`), 0))

	got, err := s.Get(ctx, "travel_plan:old")
	require.NoError(t, err)
	assert.True(t, got.Legacy)
	assert.Equal(t, int64(0), got.Version)
	assert.JSONEq(t, `{"step":3}`, string(got.Plan.WorkflowData))

	// A legacy record is version 0 for compare-and-save purposes.
	require.NoError(t, s.CompareAndSave(ctx, "travel_plan:old", 0, got.Next(got.Plan.Itinerary, time.Now())))
	upgraded, err := s.Get(ctx, "travel_plan:old")
	require.NoError(t, err)
	assert.False(t, upgraded.Legacy)
	assert.Equal(t, int64(1), upgraded.Version)
	assert.JSONEq(t, `{"step":3}`, string(upgraded.Plan.WorkflowData))
}

func TestPlanStore_GetUnreadableIsInternal(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "travel_plan:bad", []byte(`[1,2,3]`), 0))

	_, err := s.Get(ctx, "travel_plan:bad")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal), "got %v", err)
}

func TestPlanStore_CompareAndSave(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	first := plan(t)

	require.NoError(t, s.CompareAndSave(ctx, "travel_plan:a", entities.VersionAbsent, first))

	err := s.CompareAndSave(ctx, "travel_plan:a", entities.VersionAbsent, first)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "create-only write must not clobber")

	second := first.Next(first.Plan.Itinerary, time.Now())
	require.NoError(t, s.CompareAndSave(ctx, "travel_plan:a", 1, second))

	stale := first.Next(first.Plan.Itinerary, time.Now())
	err = s.CompareAndSave(ctx, "travel_plan:a", 1, stale)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "got %v", err)

	got, err := s.Get(ctx, "travel_plan:a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestPlanStore_TurnsRoundTripInOrder(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendTurns(ctx, "chat_history:a",
		entities.NewChatTurn(entities.RoleUser, "one", now),
		entities.NewChatTurn(entities.RoleAssistant, "two", now),
	))
	require.NoError(t, mem.AppendList(ctx, "chat_history:a", 0, []byte("not json")))
	require.NoError(t, s.AppendTurns(ctx, "chat_history:a", entities.NewChatTurn(entities.RoleUser, "three", now)))

	turns, err := s.RecentTurns(ctx, "chat_history:a", 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{turns[0].Message, turns[1].Message, turns[2].Message})

	tail, err := s.RecentTurns(ctx, "chat_history:a", 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "three", tail[0].Message)

	empty, err := s.RecentTurns(ctx, "chat_history:none", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// MockCacheProvider lets tests inject backend failures.
type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCacheProvider) Update(ctx context.Context, key string, ttl time.Duration, fn providers.UpdateFunc) error {
	return m.Called(ctx, key, ttl, fn).Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheProvider) AppendList(ctx context.Context, key string, ttl time.Duration, values ...[]byte) error {
	return m.Called(ctx, key, ttl, values).Error(0)
}

func (m *MockCacheProvider) ListTail(ctx context.Context, key string, n int) ([][]byte, error) {
	args := m.Called(ctx, key, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}

func TestPlanStore_BackendFailures(t *testing.T) {
	backend := new(MockCacheProvider)
	s := NewPlanStore(backend, time.Hour)
	ctx := context.Background()
	down := errors.New("connection refused")

	backend.On("Get", ctx, "travel_plan:a").Return(nil, down)
	backend.On("Update", ctx, "travel_plan:a", time.Hour, mock.Anything).Return(providers.ErrCacheConflict).Once()
	backend.On("Update", ctx, "travel_plan:b", time.Hour, mock.Anything).Return(down)
	backend.On("ListTail", ctx, "chat_history:a", 6).Return(nil, down)

	_, err := s.Get(ctx, "travel_plan:a")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal), "got %v", err)

	err = s.CompareAndSave(ctx, "travel_plan:a", 1, plan(t))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "watch failure maps to conflict")

	err = s.CompareAndSave(ctx, "travel_plan:b", 1, plan(t))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal), "got %v", err)

	_, err = s.RecentTurns(ctx, "chat_history:a", 6)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal), "got %v", err)

	backend.AssertExpectations(t)
}
