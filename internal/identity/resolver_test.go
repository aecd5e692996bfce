package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// MockMappingStore is a mock implementation of MappingStore
type MockMappingStore struct {
	mock.Mock
}

func (m *MockMappingStore) LookupMappings(ctx context.Context, teamID string, anonymousIDs []string) (map[string]domain.IdentityMapping, error) {
	args := m.Called(ctx, teamID, anonymousIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.IdentityMapping), args.Error(1)
}

func TestResolve_UserIDAlwaysWins(t *testing.T) {
	store := new(MockMappingStore)
	r := NewResolver(store, zap.NewNop())

	// No store call expected even though a mapping exists for the anon id.
	id, err := r.Resolve(context.Background(), "team1", "user42", "anon-abc")

	assert.NoError(t, err)
	assert.Equal(t, "user42", id)
	store.AssertNotCalled(t, "LookupMappings")
}

func TestResolve_AnonymousMapped(t *testing.T) {
	store := new(MockMappingStore)
	store.On("LookupMappings", mock.Anything, "team1", []string{"anon-abc"}).Return(
		map[string]domain.IdentityMapping{
			"anon-abc": {TeamID: "team1", AnonymousID: "anon-abc", UserID: "user42"},
		}, nil)

	r := NewResolver(store, zap.NewNop())
	id, err := r.Resolve(context.Background(), "team1", "", "anon-abc")

	assert.NoError(t, err)
	assert.Equal(t, "user42", id)
	store.AssertExpectations(t)
}

func TestResolve_AnonymousUnmapped(t *testing.T) {
	store := new(MockMappingStore)
	store.On("LookupMappings", mock.Anything, "team1", []string{"anon-abc"}).Return(
		map[string]domain.IdentityMapping{}, nil)

	r := NewResolver(store, zap.NewNop())
	id, err := r.Resolve(context.Background(), "team1", "", "anon-abc")

	assert.NoError(t, err)
	assert.Equal(t, "anon_anon-abc", id)
}

func TestResolve_NoIdentity(t *testing.T) {
	r := NewResolver(new(MockMappingStore), zap.NewNop())

	first, err := r.Resolve(context.Background(), "team1", "", "")
	assert.NoError(t, err)
	second, err := r.Resolve(context.Background(), "team1", "", "")
	assert.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "unknown_"))
	assert.True(t, strings.HasPrefix(second, "unknown_"))
	assert.NotEqual(t, first, second)
}

func TestPreload_CachesNegativeResults(t *testing.T) {
	store := new(MockMappingStore)
	store.On("LookupMappings", mock.Anything, "team1", []string{"a", "b"}).Return(
		map[string]domain.IdentityMapping{
			"a": {TeamID: "team1", AnonymousID: "a", UserID: "user-a"},
		}, nil).Once()

	r := NewResolver(store, zap.NewNop())
	assert.NoError(t, r.Preload(context.Background(), "team1", []string{"a", "b", "b", ""}))

	// Both hits and misses resolve from cache; no further store calls.
	idA, err := r.Resolve(context.Background(), "team1", "", "a")
	assert.NoError(t, err)
	assert.Equal(t, "user-a", idA)

	idB, err := r.Resolve(context.Background(), "team1", "", "b")
	assert.NoError(t, err)
	assert.Equal(t, "anon_b", idB)

	store.AssertExpectations(t)
}

func TestAnonymousFromCanonical(t *testing.T) {
	anon, ok := AnonymousFromCanonical("anon_xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", anon)

	_, ok = AnonymousFromCanonical("user42")
	assert.False(t, ok)
}
