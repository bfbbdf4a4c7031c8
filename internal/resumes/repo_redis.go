package resumes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"aicv-backend/internal/shared/telemetry"
)

// hsetIfExists writes hash fields only when the hash is still present and
// returns the full hash afterwards, so late writers never resurrect a deleted
// resume.
var hsetIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return redis.call('HGETALL', KEYS[1])
`)

// putDocument stores ARGV[2] under field ARGV[1] of KEYS[1] while the resume
// at KEYS[2] exists. Returns -1 when the resume is gone, 0 when the stored
// value is identical and 1 when it changed.
var putDocument = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
	return -1
end
local old = redis.call('HGET', KEYS[1], ARGV[1])
if old == ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RedisRepo stores resumes in Redis hashes with a per-user id set.
type RedisRepo struct {
	rdb redis.UniversalClient
}

// NewRedisRepo constructs a RedisRepo.
func NewRedisRepo(rdb redis.UniversalClient) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

// Create writes the record and indexes it under its owner in one transaction.
func (r *RedisRepo) Create(ctx context.Context, res Resume) error {
	values, err := encodeResume(res)
	if err != nil {
		return err
	}
	cmds, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, resumeKey(res.ID), values)
		pipe.SAdd(ctx, userResumesKey(res.OwnerID), res.ID)
		return nil
	})
	if err != nil {
		return classifyTx(cmds, err, "create")
	}
	return nil
}

// Get loads one record.
func (r *RedisRepo) Get(ctx context.Context, id string) (Resume, error) {
	h, err := r.rdb.HGetAll(ctx, resumeKey(id)).Result()
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if len(h) == 0 {
		return Resume{}, ErrNotFound
	}
	return decodeResume(id, h)
}

// Owner returns the owning user id of a resume.
func (r *RedisRepo) Owner(ctx context.Context, id string) (string, error) {
	owner, err := r.rdb.HGet(ctx, resumeKey(id), fieldUserID).Result()
	if errors.Is(err, redis.Nil) {
		n, existsErr := r.rdb.Exists(ctx, resumeKey(id)).Result()
		if existsErr != nil {
			return "", fmt.Errorf("%w: %w", ErrStore, existsErr)
		}
		if n == 0 {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %s has no owner", ErrCorruptedRecord, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}
	if owner == "" {
		return "", fmt.Errorf("%w: %s has no owner", ErrCorruptedRecord, id)
	}
	return owner, nil
}

// ListByOwner returns the owner's resumes whose deleted flag equals trashed,
// newest first. Dangling or unreadable ids are skipped.
func (r *RedisRepo) ListByOwner(ctx context.Context, ownerID string, trashed bool) ([]Resume, error) {
	ids, err := r.rdb.SMembers(ctx, userResumesKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if len(ids) == 0 {
		return []Resume{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, resumeKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	out := make([]Resume, 0, len(ids))
	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			telemetry.Warn("resumes.list.dangling", map[string]any{"user_id": ownerID, "resume_id": ids[i]})
			continue
		}
		res, err := decodeResume(ids[i], h)
		if err != nil || res.OwnerID != ownerID {
			telemetry.Warn("resumes.list.skip_corrupted", map[string]any{"user_id": ownerID, "resume_id": ids[i], "error": err})
			continue
		}
		if res.IsDeleted != trashed {
			continue
		}
		out = append(out, res)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update applies the non-nil fields and stamps updatedAt.
func (r *RedisRepo) Update(ctx context.Context, id string, fields UpdateFields, at time.Time) (Resume, error) {
	args := make([]any, 0, 8)
	if fields.Name != nil {
		args = append(args, fieldName, *fields.Name)
	}
	if fields.TemplateType != nil {
		args = append(args, fieldTemplateType, *fields.TemplateType)
	}
	if fields.Color != nil {
		args = append(args, fieldColor, *fields.Color)
	}
	if len(args) == 0 {
		return Resume{}, ErrInvalidRequest
	}
	args = append(args, fieldUpdatedAt, formatTime(at))
	return r.hsetExisting(ctx, id, args...)
}

// SetDeleted flips the soft-delete flag.
func (r *RedisRepo) SetDeleted(ctx context.Context, id string, deleted bool) (Resume, error) {
	return r.hsetExisting(ctx, id, fieldIsDeleted, boolFlag(deleted))
}

// SetScreenshots stores the preview URLs of a finished render. The first URL
// doubles as the primary screenshot.
func (r *RedisRepo) SetScreenshots(ctx context.Context, id string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	_, err = r.hsetExisting(ctx, id, fieldScreenshotURL, urls[0], fieldScreenshotURLs, string(encoded))
	return err
}

// Delete removes the record, its index entry and its sub-documents atomically.
func (r *RedisRepo) Delete(ctx context.Context, ownerID, id string) error {
	cmds, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, resumeKey(id))
		pipe.SRem(ctx, userResumesKey(ownerID), id)
		pipe.Del(ctx, userDataKey(ownerID, id))
		return nil
	})
	if err != nil {
		return classifyTx(cmds, err, "delete")
	}
	return nil
}

// GetDocument returns the raw JSON of a sub-document, or ErrNotFound when it
// was never written.
func (r *RedisRepo) GetDocument(ctx context.Context, ownerID, id string, doc Document) ([]byte, error) {
	raw, err := r.rdb.HGet(ctx, userDataKey(ownerID, id), string(doc)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return raw, nil
}

// PutDocument replaces a sub-document while the resume exists.
func (r *RedisRepo) PutDocument(ctx context.Context, ownerID, id string, doc Document, body []byte) (bool, error) {
	keys := []string{userDataKey(ownerID, id), resumeKey(id)}
	n, err := putDocument.Run(ctx, r.rdb, keys, string(doc), string(body)).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStore, err)
	}
	switch n {
	case -1:
		return false, ErrNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// DeleteDocument drops a sub-document. Deleting a missing document is not an error.
func (r *RedisRepo) DeleteDocument(ctx context.Context, ownerID, id string, doc Document) error {
	if err := r.rdb.HDel(ctx, userDataKey(ownerID, id), string(doc)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

func (r *RedisRepo) hsetExisting(ctx context.Context, id string, args ...any) (Resume, error) {
	vals, err := hsetIfExists.Run(ctx, r.rdb, []string{resumeKey(id)}, args...).StringSlice()
	if errors.Is(err, redis.Nil) {
		return Resume{}, ErrNotFound
	}
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	h := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		h[vals[i]] = vals[i+1]
	}
	return decodeResume(id, h)
}

// classifyTx maps a failed transaction to ErrPartialWrite when any queued
// command reports success, otherwise to ErrStore.
func classifyTx(cmds []redis.Cmder, err error, op string) error {
	applied := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			applied++
		}
	}
	if applied > 0 && applied < len(cmds) {
		telemetry.Error("resumes.tx.partial", map[string]any{"op": op, "applied": applied, "total": len(cmds), "error": err})
		return fmt.Errorf("%w: %s: %w", ErrPartialWrite, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func encodeResume(res Resume) (map[string]any, error) {
	values := map[string]any{
		fieldUserID:       res.OwnerID,
		fieldName:         res.Name,
		fieldCreatedAt:    formatTime(res.CreatedAt),
		fieldTemplateType: res.TemplateType,
		fieldColor:        res.Color,
		fieldIsDeleted:    boolFlag(res.IsDeleted),
	}
	if res.UpdatedAt != nil {
		values[fieldUpdatedAt] = formatTime(*res.UpdatedAt)
	}
	if res.ScreenshotURL != "" {
		values[fieldScreenshotURL] = res.ScreenshotURL
	}
	if len(res.ScreenshotURLs) > 0 {
		encoded, err := json.Marshal(res.ScreenshotURLs)
		if err != nil {
			return nil, err
		}
		values[fieldScreenshotURLs] = string(encoded)
	}
	return values, nil
}

func decodeResume(id string, h map[string]string) (Resume, error) {
	res := Resume{
		ID:            id,
		OwnerID:       h[fieldUserID],
		Name:          h[fieldName],
		TemplateType:  h[fieldTemplateType],
		Color:         h[fieldColor],
		IsDeleted:     h[fieldIsDeleted] == "1" || h[fieldIsDeleted] == "true",
		ScreenshotURL: h[fieldScreenshotURL],
	}
	if res.OwnerID == "" {
		return Resume{}, fmt.Errorf("%w: %s has no owner", ErrCorruptedRecord, id)
	}

	created, err := parseTime(h[fieldCreatedAt])
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %s createdAt: %w", ErrCorruptedRecord, id, err)
	}
	res.CreatedAt = created

	if v := h[fieldUpdatedAt]; v != "" {
		updated, err := parseTime(v)
		if err != nil {
			return Resume{}, fmt.Errorf("%w: %s updatedAt: %w", ErrCorruptedRecord, id, err)
		}
		res.UpdatedAt = &updated
	}

	if v := h[fieldScreenshotURLs]; v != "" {
		if err := json.Unmarshal([]byte(v), &res.ScreenshotURLs); err != nil {
			return Resume{}, fmt.Errorf("%w: %s screenshotUrls: %w", ErrCorruptedRecord, id, err)
		}
	}
	if len(res.ScreenshotURLs) == 0 && res.ScreenshotURL != "" {
		res.ScreenshotURLs = []string{res.ScreenshotURL}
	}
	return res, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
