package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket для ограничения частоты запросов.
//
// Ведро наполняется со скоростью rate токенов/сек до емкости burst,
// каждый запрос потребляет один токен. Используется в HTTP middleware
// для защиты аутентификации от перебора паролей.
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter создает limiter с указанной скоростью и емкостью
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// refill пополняет токены за прошедшее время. Вызывается под lock'ом.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Allow проверяет доступность токена без блокировки
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tokens возвращает текущее количество доступных токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// ============================================================
// KeyedLimiter - независимые лимиты по ключу
// ============================================================

// KeyedLimiter ведет отдельное ведро на каждый ключ (IP клиента,
// email при логине). Неактивные ведра периодически удаляются, чтобы
// карта не росла бесконечно.
type KeyedLimiter struct {
	rate  float64
	burst float64

	mu       sync.Mutex
	buckets  map[string]*keyedBucket
	shutdown chan struct{}
	once     sync.Once
}

type keyedBucket struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewKeyedLimiter создает лимитер с указанными rate/burst на ключ
// и запускает фоновую очистку неактивных ведер.
func NewKeyedLimiter(rate, burst float64) *KeyedLimiter {
	kl := &KeyedLimiter{
		rate:     rate,
		burst:    burst,
		buckets:  make(map[string]*keyedBucket),
		shutdown: make(chan struct{}),
	}

	go kl.cleanupLoop()

	return kl
}

// Allow проверяет доступность токена для ключа
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	bucket, ok := kl.buckets[key]
	if !ok {
		bucket = &keyedBucket{limiter: NewRateLimiter(kl.rate, kl.burst)}
		kl.buckets[key] = bucket
	}
	bucket.lastSeen = time.Now()
	kl.mu.Unlock()

	return bucket.limiter.Allow()
}

// Close останавливает фоновую очистку
func (kl *KeyedLimiter) Close() {
	kl.once.Do(func() { close(kl.shutdown) })
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-kl.shutdown:
			return
		case <-ticker.C:
			kl.cleanup(10 * time.Minute)
		}
	}
}

func (kl *KeyedLimiter) cleanup(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, bucket := range kl.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(kl.buckets, key)
		}
	}
}
