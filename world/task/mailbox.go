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

package task

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrMailboxClosed повертається після закриття скриньки
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox - виконавець головного потоку. Інші горутини кладуть сюди
// повідомлення, а головний потік виконує їх у RunPending або ManagedBlock.
type Mailbox struct {
	log *zap.Logger

	mu       sync.Mutex
	messages []func()
	closed   bool
	notify   chan struct{}
	queues   []*Queue
}

func NewMailbox(log *zap.Logger) *Mailbox {
	return &Mailbox{log: log, notify: make(chan struct{}, 1)}
}

// Execute кладе повідомлення в чергу. Ніколи не виконує його одразу.
func (m *Mailbox) Execute(fn func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.messages = append(m.messages, fn)
	m.mu.Unlock()
	m.wake()
	return nil
}

// Drain підключає чергу задач, яку розбирає головний потік
func (m *Mailbox) Drain(q *Queue) {
	m.mu.Lock()
	m.queues = append(m.queues, q)
	m.mu.Unlock()
	q.setNotify(m.wake)
}

func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// RunPending виконує все, що накопичилось, і повертає кількість виконаного
func (m *Mailbox) RunPending() (n int) {
	for {
		ran := m.runOnce()
		if ran == 0 {
			return n
		}
		n += ran
	}
}

func (m *Mailbox) runOnce() (n int) {
	m.mu.Lock()
	messages := m.messages
	m.messages = nil
	queues := m.queues
	m.mu.Unlock()

	for _, fn := range messages {
		fn()
		n++
	}
	for _, q := range queues {
		if pos, fn, ok := q.TryNext(); ok {
			RunTask(m.log, q, pos, fn)
			n++
		}
	}
	return
}

// ManagedBlock - єдине дозволене блокування головного потоку.
// Поки done() не поверне true, потік виконує повідомлення і задачі,
// тому не може зависнути на ф'ючері, який сам і має заповнити.
func (m *Mailbox) ManagedBlock(ctx context.Context, done func() bool) error {
	for !done() {
		if m.RunPending() > 0 {
			continue
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Pending повертає кількість повідомлень у черзі
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Close відкидає нові повідомлення
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
