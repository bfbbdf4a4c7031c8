package resumes

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"aicv-backend/internal/queue"
	"aicv-backend/internal/screenshot"
)

var testNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestRepo(t *testing.T) (*RedisRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRepo(rdb), mr
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) sent() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.msgs...)
}

type fakeRenderer struct {
	mu    sync.Mutex
	urls  []string
	err   error
	calls []screenshot.Request
}

func (f *fakeRenderer) Render(ctx context.Context, req screenshot.Request) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

type fakeTokens struct {
	issued []string
}

func (f *fakeTokens) SignWithTTL(userID, contact string, ttl time.Duration) (string, error) {
	f.issued = append(f.issued, userID)
	return "minted-" + userID, nil
}

type testEnv struct {
	svc      *Service
	repo     *RedisRepo
	mr       *miniredis.Miniredis
	jobs     *recordingQueue
	renderer *fakeRenderer
	tokens   *fakeTokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, mr := newTestRepo(t)
	env := &testEnv{
		repo:     repo,
		mr:       mr,
		jobs:     &recordingQueue{},
		renderer: &fakeRenderer{urls: []string{"https://cdn.test/shot-1.png"}},
		tokens:   &fakeTokens{},
	}
	seq := 0
	env.svc = &Service{
		Repo:            repo,
		Guard:           &Guard{Owners: repo},
		Namer:           NewNamer("zh-CN", "Asia/Shanghai"),
		Jobs:            env.jobs,
		Renderer:        env.renderer,
		Tokens:          env.tokens,
		ServiceTokenTTL: time.Minute,
		now:             func() time.Time { return testNow },
		newID: func() string {
			seq++
			return fmt.Sprintf("r%d", seq)
		},
	}
	return env
}
