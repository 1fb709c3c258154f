// Package redisstore keeps explore preferences in Redis so they survive
// sessions and are shared across instances.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/preferences"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "explore:prefs"

type PreferenceStore struct {
	rdb *redis.Client
}

func NewPreferenceStore(rdb *redis.Client) *PreferenceStore {
	return &PreferenceStore{rdb: rdb}
}

// ForUser scopes the store to one user.
func (s *PreferenceStore) ForUser(userID uuid.UUID) preferences.Store {
	return &userPreferences{rdb: s.rdb, userID: userID.String()}
}

type userPreferences struct {
	rdb    *redis.Client
	userID string
}

func (p *userPreferences) lastUsedKey(orgID int64) string {
	return fmt.Sprintf("%s:%s:last_datasource:%d", keyPrefix, p.userID, orgID)
}

func (p *userPreferences) supplementaryKey() string {
	return fmt.Sprintf("%s:%s:supplementary", keyPrefix, p.userID)
}

func (p *userPreferences) LastUsedDatasource(ctx context.Context, orgID int64) (string, error) {
	uid, err := p.rdb.Get(ctx, p.lastUsedKey(orgID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return uid, err
}

func (p *userPreferences) SetLastUsedDatasource(ctx context.Context, orgID int64, uid string) error {
	return p.rdb.Set(ctx, p.lastUsedKey(orgID), uid, 0).Err()
}

func (p *userPreferences) SupplementaryQueriesEnabled(ctx context.Context) (map[model.SupplementaryQueryType]bool, error) {
	raw, err := p.rdb.HGetAll(ctx, p.supplementaryKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[model.SupplementaryQueryType]bool, len(raw))
	for k, v := range raw {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			continue
		}
		out[model.SupplementaryQueryType(k)] = enabled
	}
	return out, nil
}

func (p *userPreferences) SetSupplementaryQueryEnabled(ctx context.Context, t model.SupplementaryQueryType, enabled bool) error {
	return p.rdb.HSet(ctx, p.supplementaryKey(), string(t), strconv.FormatBool(enabled)).Err()
}
