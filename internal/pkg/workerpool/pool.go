// Package workerpool is a bounded goroutine pool on top of ants
package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// TaskResult 任务结果
type TaskResult[T any] struct {
	Data  T
	Error error
}

// Config 配置
type Config struct {
	Workers int
	// NonBlocking makes Submit fail with ants.ErrPoolOverload instead of
	// waiting for a free worker
	NonBlocking bool
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{Workers: 4}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64
	Completed int64
	Panicked  int64
	Running   int64
}

// Pool bounded worker pool
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	running   atomic.Int64

	logger *logger.Logger
}

// New 创建 Worker Pool
func New(config *Config, log *logger.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}

	p := &Pool{logger: logger.OrGlobal(log).Named("workerpool")}

	antsPool, err := ants.NewPool(config.Workers,
		ants.WithNonblocking(config.NonBlocking),
		ants.WithPanicHandler(func(err interface{}) {
			p.panicked.Add(1)
			p.logger.Error("worker panic", zap.Any("error", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool
	return p, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		p.running.Add(1)
		defer func() {
			p.running.Add(-1)
			p.completed.Add(1)
			p.wg.Done()
		}()
		task()
	})
	if err != nil {
		p.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	p.submitted.Add(1)
	return nil
}

// SubmitWithResult runs task on the pool and delivers its result on the
// returned channel. A rejected submission is delivered as the result error.
func SubmitWithResult[T any](p *Pool, task func() (T, error)) <-chan TaskResult[T] {
	resultCh := make(chan TaskResult[T], 1)

	err := p.Submit(func() {
		var res TaskResult[T]
		defer func() {
			if r := recover(); r != nil {
				res.Error = fmt.Errorf("task panic: %v", r)
			}
			resultCh <- res
			close(resultCh)
		}()
		res.Data, res.Error = task()
	})
	if err != nil {
		resultCh <- TaskResult[T]{Error: err}
		close(resultCh)
	}
	return resultCh
}

// Wait blocks until every submitted task has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free 获取空闲 worker 数量
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Cap 容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Tune resizes the pool
func (p *Pool) Tune(size int) {
	if size > 0 {
		p.pool.Tune(size)
	}
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Running:   p.running.Load(),
	}
}

// Shutdown waits for queued tasks and releases the workers
func (p *Pool) Shutdown() {
	p.wg.Wait()
	p.pool.Release()
}
