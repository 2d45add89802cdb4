// Package task 实现协作式异步任务原语
//
// Task[T] 表示一个进行中的异步计算，恰好处于三种状态之一：
// 未完成、成功（持有结果值）、失败（持有错误）。
//
// 完成通过 channel 通知：完成方（反应器完成泵或 Go 启动的 goroutine）
// 调用 Resolve/Fail，等待方在 Await 中挂起直至完成。不存在同栈恢复。
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// ErrPending 任务尚未完成
var ErrPending = errors.New("task pending")

// State 任务状态
type State int32

const (
	// StatePending 未完成
	StatePending State = iota
	// StateSucceeded 成功
	StateSucceeded
	// StateFailed 失败
	StateFailed
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PanicError 任务函数 panic 时捕获的失败
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Task 异步任务句柄
type Task[T any] struct {
	// claimed 由第一个完成者置位，保证只完成一次
	claimed atomic.Bool
	state   atomic.Int32
	done    chan struct{}

	value T
	err   error
}

// New 创建未完成的任务
func New[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Resolved 创建已成功的任务
func Resolved[T any](v T) *Task[T] {
	t := New[T]()
	t.Resolve(v)
	return t
}

// Failed 创建已失败的任务
func Failed[T any](err error) *Task[T] {
	t := New[T]()
	t.Fail(err)
	return t
}

// Go 在新 goroutine 中运行 fn，返回对应任务
//
// fn 的 panic 被捕获为 *PanicError。
func Go[T any](fn func() (T, error)) *Task[T] {
	t := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fail(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn()
		if err != nil {
			t.Fail(err)
			return
		}
		t.Resolve(v)
	}()
	return t
}

// Resolve 以结果值完成任务
//
// 任务已完成时返回 false，结果不变。
func (t *Task[T]) Resolve(v T) bool {
	if !t.claimed.CompareAndSwap(false, true) {
		return false
	}
	t.value = v
	t.state.Store(int32(StateSucceeded))
	close(t.done)
	return true
}

// Fail 以错误完成任务
//
// err 为 nil 时视为 Resolve 零值。任务已完成时返回 false。
func (t *Task[T]) Fail(err error) bool {
	if err == nil {
		var zero T
		return t.Resolve(zero)
	}
	if !t.claimed.CompareAndSwap(false, true) {
		return false
	}
	t.err = err
	t.state.Store(int32(StateFailed))
	close(t.done)
	return true
}

// Done 返回完成时关闭的 channel
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// IsDone 任务是否已完成
func (t *Task[T]) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// State 返回当前状态
func (t *Task[T]) State() State {
	return State(t.state.Load())
}

// Result 返回结果或失败
//
// 任务未完成时返回 ErrPending。
func (t *Task[T]) Result() (T, error) {
	if !t.IsDone() {
		var zero T
		return zero, ErrPending
	}
	return t.value, t.err
}

// Await 挂起调用方直至任务完成或 ctx 结束
//
// ctx 结束只放弃等待，不取消任务本身。
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait 阻塞直至任务完成
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.value, t.err
}
