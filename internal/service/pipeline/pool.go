package pipeline

import (
	"context"
	"sync"
)

// workerPool 有界并发池，限制对源系统和对象存储的并发传输
// 取消信号阻止新传输开始，在途传输自行完成或失败
type workerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	return &workerPool{sem: make(chan struct{}, size)}
}

// Submit 提交一个任务，已取消时拒绝执行
func (p *workerPool) Submit(ctx context.Context, task func()) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.sem <- struct{}{}:
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		task()
	}()
	return nil
}

// Wait 等待全部在途任务结束
func (p *workerPool) Wait() {
	p.wg.Wait()
}
