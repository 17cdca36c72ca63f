package locker

import (
	"context"
	"log"
	"sync"
	"time"

	"chatstore/internal/models"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// extendScript resets the lease of a key we still hold.
var extendScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// Redis is a lease based lock shared by every replica. A held lease is
// renewed every ttl/3 until Unlock, so the ttl only bounds how long a
// crashed holder keeps the key.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	renew  time.Duration
	poll   time.Duration
}

func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		renew:  ttl / 3,
		poll:   50 * time.Millisecond,
	}
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) try(ctx context.Context, key string) (Unlock, bool, error) {
	token := models.NewID()
	ok, err := r.client.SetNX(ctx, r.key(key), token, r.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// the caller's ctx may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, token).Err(); err != nil {
				log.Printf("locker: release %s: %v", key, err)
			}
		})
	}, true, nil
}

// keepAlive extends the lease until stop is closed or the lease is lost.
func (r *Redis) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if r.renew <= 0 {
		return
	}
	ticker := time.NewTicker(r.renew)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.renew)
			n, err := extendScript.Run(ctx, r.client, []string{r.key(key)}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				log.Printf("locker: extend %s: %v", key, err)
				continue
			}
			if n == 0 {
				log.Printf("locker: lease on %s lost", key)
				return
			}
		}
	}
}

func (r *Redis) TryLock(ctx context.Context, key string) (Unlock, bool, error) {
	return r.try(ctx, key)
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		unlock, ok, err := r.try(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
