// This file is part of go-mc/server project.
// Copyright (C) 2023.  Tnze
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package task містить примітиви, через які потоки системи чанків
// спілкуються між собою: ф'ючери, поштову скриньку головного потоку
// та пріоритетну чергу задач з пулом воркерів.
package task

import (
	"context"
	"sync"
)

// Future - комірка, яку можна заповнити тільки один раз.
// Колбеки виконуються в горутині, яка заповнює комірку.
type Future[T any] struct {
	mu        sync.Mutex
	done      bool
	value     T
	callbacks []func(T)
	ready     chan struct{}
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{ready: make(chan struct{})}
}

// Completed повертає вже заповнений ф'ючер
func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v)
	return f
}

// Complete заповнює ф'ючер. Повертає false, якщо він вже був заповнений.
func (f *Future[T]) Complete(v T) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done, f.value = true, v
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.ready)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(v)
	}
	return true
}

// Now повертає значення, якщо воно вже є
func (f *Future[T]) Now() (v T, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.done
}

func (f *Future[T]) Done() bool {
	_, ok := f.Now()
	return ok
}

// Then реєструє колбек. Якщо значення вже є, колбек викликається одразу.
func (f *Future[T]) Then(fn func(T)) {
	f.mu.Lock()
	if !f.done {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v := f.value
	f.mu.Unlock()
	fn(v)
}

// Wait блокує горутину до заповнення ф'ючера.
// Головний потік не повинен цього робити, для нього є Mailbox.ManagedBlock.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ready:
		v, _ := f.Now()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Map повертає ф'ючер з перетвореним значенням
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	out := NewFuture[U]()
	f.Then(func(v T) { out.Complete(fn(v)) })
	return out
}

// Compose чекає на f, а потім на ф'ючер, який повертає fn
func Compose[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out := NewFuture[U]()
	f.Then(func(v T) {
		fn(v).Then(func(u U) { out.Complete(u) })
	})
	return out
}

// Combine чекає на обидва ф'ючери
func Combine[A, B, C any](a *Future[A], b *Future[B], fn func(A, B) C) *Future[C] {
	return Compose(a, func(av A) *Future[C] {
		return Map(b, func(bv B) C { return fn(av, bv) })
	})
}

// All чекає на всі ф'ючери і повертає їх значення в тому ж порядку
func All[T any](fs []*Future[T]) *Future[[]T] {
	out := NewFuture[[]T]()
	if len(fs) == 0 {
		out.Complete(nil)
		return out
	}
	var (
		mu      sync.Mutex
		values  = make([]T, len(fs))
		pending = len(fs)
	)
	for i, f := range fs {
		i := i
		f.Then(func(v T) {
			mu.Lock()
			values[i] = v
			pending--
			last := pending == 0
			mu.Unlock()
			if last {
				out.Complete(values)
			}
		})
	}
	return out
}
