package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	contactsKey  = "user_contacts"
	googleSubKey = "google_sub"
)

func profileKey(userID string) string {
	return "user_profile:" + userID
}

// RedisRepo keeps identity mappings in Redis hashes.
type RedisRepo struct {
	rdb redis.UniversalClient
}

func NewRedisRepo(rdb redis.UniversalClient) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func (r *RedisRepo) ResolveContact(ctx context.Context, contact, candidateID string) (string, error) {
	return r.resolve(ctx, contactsKey, contact, candidateID)
}

func (r *RedisRepo) LookupContact(ctx context.Context, contact string) (string, error) {
	return r.lookup(ctx, contactsKey, contact)
}

func (r *RedisRepo) ResolveGoogleSub(ctx context.Context, sub, candidateID string) (string, error) {
	return r.resolve(ctx, googleSubKey, sub, candidateID)
}

func (r *RedisRepo) LookupGoogleSub(ctx context.Context, sub string) (string, error) {
	return r.lookup(ctx, googleSubKey, sub)
}

// resolve uses HSETNX so concurrent first logins for the same key agree on one id.
func (r *RedisRepo) resolve(ctx context.Context, hash, field, candidateID string) (string, error) {
	set, err := r.rdb.HSetNX(ctx, hash, field, candidateID).Result()
	if err != nil {
		return "", fmt.Errorf("users: hsetnx %s: %w", hash, err)
	}
	if set {
		return candidateID, nil
	}
	return r.lookup(ctx, hash, field)
}

func (r *RedisRepo) lookup(ctx context.Context, hash, field string) (string, error) {
	id, err := r.rdb.HGet(ctx, hash, field).Result()
	if errors.Is(err, redis.Nil) || (err == nil && id == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("users: hget %s: %w", hash, err)
	}
	return id, nil
}

func (r *RedisRepo) RecordLogin(ctx context.Context, userID string, login Login, at time.Time) error {
	key := profileKey(userID)
	stamp := at.UTC().Format(time.RFC3339)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "createdAt", stamp)
		fields := map[string]any{
			"lastLoginAt": stamp,
			"provider":    string(login.Provider),
		}
		if login.Contact != "" {
			fields["contact"] = login.Contact
		}
		if login.Name != "" {
			fields["name"] = login.Name
		}
		if login.PictureURL != "" {
			fields["picture"] = login.PictureURL
		}
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("users: record login: %w", err)
	}
	return nil
}

func (r *RedisRepo) GetByID(ctx context.Context, userID string) (User, error) {
	h, err := r.rdb.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return User{}, fmt.Errorf("users: load profile: %w", err)
	}
	if len(h) == 0 {
		return User{}, ErrNotFound
	}
	u := User{
		ID:         userID,
		Contact:    h["contact"],
		Provider:   Provider(h["provider"]),
		Name:       h["name"],
		PictureURL: h["picture"],
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, h["createdAt"])
	u.LastLoginAt, _ = time.Parse(time.RFC3339, h["lastLoginAt"])
	return u, nil
}
