package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// MappingStore is the store-side lookup the resolver batches against.
type MappingStore interface {
	// LookupMappings returns the most-recently-seen mapping per requested
	// (team, anonymous_id) pair. Pairs without a mapping are absent.
	LookupMappings(ctx context.Context, teamID string, anonymousIDs []string) (map[string]domain.IdentityMapping, error)
}

// Key identifies one anonymous identity inside a team.
type Key struct {
	TeamID      string
	AnonymousID string
}

// Resolver collapses (user_id, anonymous_id) pairs into canonical user ids.
// The cache lives for one batch run and is single-writer; it is never shared
// across runs.
type Resolver struct {
	store MappingStore
	cache map[Key]string // "" marks a confirmed miss
	log   *zap.Logger
}

func NewResolver(store MappingStore, log *zap.Logger) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[Key]string),
		log:   log,
	}
}

// Preload performs one multi-key lookup for every pair the current chunk will
// need, populating the cache including negative entries.
func (r *Resolver) Preload(ctx context.Context, teamID string, anonymousIDs []string) error {
	missing := make([]string, 0, len(anonymousIDs))
	seen := make(map[string]bool, len(anonymousIDs))
	for _, anonID := range anonymousIDs {
		if anonID == "" || seen[anonID] {
			continue
		}
		seen[anonID] = true
		if _, ok := r.cache[Key{TeamID: teamID, AnonymousID: anonID}]; !ok {
			missing = append(missing, anonID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	mappings, err := r.store.LookupMappings(ctx, teamID, missing)
	if err != nil {
		return fmt.Errorf("failed to preload identity mappings: %w", err)
	}

	for _, anonID := range missing {
		key := Key{TeamID: teamID, AnonymousID: anonID}
		if m, ok := mappings[anonID]; ok {
			r.cache[key] = m.UserID
		} else {
			r.cache[key] = ""
		}
	}

	r.log.Debug("Preloaded identity mappings",
		zap.String("team_id", teamID),
		zap.Int("requested", len(missing)),
		zap.Int("found", len(mappings)))

	return nil
}

// Resolve returns the canonical user id. An authenticated user_id always
// wins; anonymous ids resolve through the mapping table, else get an anon_
// prefix; events with neither get a fresh unknown_ token.
func (r *Resolver) Resolve(ctx context.Context, teamID, userID, anonymousID string) (string, error) {
	if userID != "" {
		return userID, nil
	}

	if anonymousID != "" {
		key := Key{TeamID: teamID, AnonymousID: anonymousID}
		mapped, cached := r.cache[key]
		if !cached {
			if err := r.Preload(ctx, teamID, []string{anonymousID}); err != nil {
				return "", err
			}
			mapped = r.cache[key]
		}
		if mapped != "" {
			return mapped, nil
		}
		return "anon_" + anonymousID, nil
	}

	return "unknown_" + uuid.NewString(), nil
}

// AnonymousFromCanonical recovers the anonymous id from a synthetic anon_
// canonical id, for callers walking the identity chain backwards.
func AnonymousFromCanonical(canonicalID string) (string, bool) {
	if strings.HasPrefix(canonicalID, "anon_") {
		return strings.TrimPrefix(canonicalID, "anon_"), true
	}
	return "", false
}
