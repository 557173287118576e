package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает частоту апдейтов от одного пользователя
// скользящим окном. Бот игнорирует лишнее, а не отвечает на него.
type RateLimiter struct {
	mu      sync.Mutex
	history map[int64][]time.Time
	limit   int
	window  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		history: make(map[int64][]time.Time),
		limit:   limit,
		window:  window,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close останавливает фоновую очистку. Вызывается на shutdown.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow сообщает, можно ли обрабатывать апдейт от telegramID сейчас.
func (rl *RateLimiter) Allow(telegramID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := trimOld(rl.history[telegramID], time.Now().Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.history[telegramID] = recent
		return false
	}

	rl.history[telegramID] = append(recent, time.Now())
	return true
}

func trimOld(times []time.Time, cutoff time.Time) []time.Time {
	var recent []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}

// cleanup периодически выбрасывает пользователей, давно не писавших,
// чтобы карта не росла бесконечно.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window)
			for telegramID, times := range rl.history {
				recent := trimOld(times, cutoff)
				if len(recent) == 0 {
					delete(rl.history, telegramID)
				} else {
					rl.history[telegramID] = recent
				}
			}
			rl.mu.Unlock()
		}
	}
}
