// Package workerpool — пул воркеров с ограниченной конкурентностью.
// Постановка задач не блокируется (все задачи принимаются сразу), а одновременно выполняется не более size задач.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

const maxDefaultSize = 32

// Task — единица работы пула.
type Task func(ctx context.Context)

// Pool выполняет задачи с ограничением конкурентности. Один пул обслуживает один вызов стадии
// и после Wait повторно не используется.
type Pool struct {
	sem  *semaphore.Weighted
	size int
	wg   sync.WaitGroup
}

// New создаёт пул на size одновременно выполняемых задач. size <= 0 означает DefaultSize().
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}

	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// DefaultSize возвращает размер пула по умолчанию: min(32, NumCPU+4).
func DefaultSize() int {
	return min(maxDefaultSize, runtime.NumCPU()+4)
}

// Size возвращает максимальное число одновременно выполняемых задач.
func (p *Pool) Size() int {
	return p.size
}

// Submit ставит задачу в очередь и сразу возвращает управление.
// Задача вызывается ровно один раз: если ctx отменён до получения слота, она вызывается
// с отменённым ctx без занятия слота.
func (p *Pool) Submit(ctx context.Context, task Task) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			task(ctx)
			return
		}
		defer p.sem.Release(1)

		task(ctx)
	}()
}

// Wait блокируется до завершения всех поставленных задач.
func (p *Pool) Wait() {
	p.wg.Wait()
}
