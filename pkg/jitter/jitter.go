// Package jitter добавляет случайную составляющую к задержкам между повторными попытками,
// чтобы параллельные воркеры не повторяли запросы синхронно (thundering herd).
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultFactor — стандартный коэффициент джиттера (50%)
const DefaultFactor = 0.5

// Apply возвращает d с применённым джиттером. Результат находится в диапазоне [d, d*(1+factor)].
func Apply(d time.Duration, factor float64) time.Duration {
	if d <= 0 || factor <= 0 {
		return d
	}

	return d + time.Duration(rand.Float64()*factor*float64(d))
}

// Exponential вычисляет экспоненциальную задержку с джиттером.
// attempt — номер уже неудавшейся попытки (нумерация с нуля), max ограничивает задержку до джиттера.
func Exponential(base, max time.Duration, attempt int, factor float64) time.Duration {
	if base <= 0 {
		return 0
	}

	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if max > 0 && backoff >= max {
			backoff = max
			break
		}
	}

	return Apply(backoff, factor)
}
