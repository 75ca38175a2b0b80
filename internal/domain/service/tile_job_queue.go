package service

import (
	"context"
	"sync"

	"GymSearch-App/internal/domain/model"
)

// TileJobQueue ワーカー間で共有するFIFOのジョブキュー
// pending はキュー内と処理中のジョブ数の合計で、0になった時点で drain が完了する
type TileJobQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []model.Job
	pending int
	closed  bool
	drained chan struct{}
}

func NewTileJobQueue() *TileJobQueue {
	q := &TileJobQueue{drained: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push ジョブを末尾に追加する（Close 後は false）
func (q *TileJobQueue) Push(job model.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, job)
	q.pending++
	q.cond.Signal()
	return true
}

// Pop 先頭のジョブを取り出す。空なら追加か Close まで待つ
// Close 後は残りのジョブがあっても false を返す
func (q *TileJobQueue) Pop() (model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}

	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job, true
}

// Done Pop したジョブの処理完了を通知する
// 処理中に Push された子ジョブは先に pending に数えられているので、ここで0になれば全て完了
func (q *TileJobQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == 0 {
		return
	}
	q.pending--
	if q.pending == 0 {
		close(q.drained)
		q.drained = make(chan struct{})
	}
}

// Wait キューが空になり処理中のジョブも無くなるまで待つ
func (q *TileJobQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return nil
	}
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 待機中の全ワーカーに停止を知らせる
func (q *TileJobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len キューに残っているジョブ数（処理中は含まない）
func (q *TileJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Pending 未完了のジョブ数（キュー内＋処理中）
func (q *TileJobQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
