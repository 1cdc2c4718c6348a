package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"story-zine/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoryLocker сериализует операции чтения-изменения-записи по ключу.
type StoryLocker interface {
	// Lock блокирует до получения блокировки или отмены ctx.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const indexLockKey = "stories:index"

func storyLockKey(storyID string) string {
	return "story:" + storyID
}

var _ StoryLocker = (*LocalLocker)(nil)

// LocalLocker - блокировки в пределах одного процесса.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
	wait  time.Duration
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker создает блокировщик. wait ограничивает ожидание блокировки;
// при wait <= 0 ожидание ограничено только ctx.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock), wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lk)
		return nil, fmt.Errorf("%w: %v", models.ErrStoryBusy, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.release(key, lk)
		})
	}, nil
}

func (l *LocalLocker) release(key string, lk *localLock) {
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// releaseScript удаляет ключ, только если он все еще принадлежит нам.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ StoryLocker = (*RedisLocker)(nil)

// RedisLocker - блокировки, общие для нескольких экземпляров сервиса (SET NX PX).
type RedisLocker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisLocker создает блокировщик. ttl ограничивает время удержания,
// wait - время ожидания блокировки.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:       client,
		prefix:       prefix + "lock:",
		ttl:          ttl,
		wait:         wait,
		pollInterval: 25 * time.Millisecond,
		logger:       logger.Named("RedisLocker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}
		select {
		case <-waitCtx.Done():
			l.logger.Warn("Timed out waiting for lock", zap.String("key", key), zap.Duration("wait", l.wait))
			return nil, models.ErrStoryBusy
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Error("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}
}
