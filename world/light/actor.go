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

// Йоу, чат! Світло рахується в окремому потоці-акторі.
// Всі запити йдуть в один канал і обробляються по черзі,
// тому двигуну світла не потрібні блокування.
// Ф'ючери, які чекає світ, заповнюються через скриньку головного потоку.

// Package light містить актор, що серіалізує оновлення світла.
package light

import (
	"sync"

	"go.uber.org/zap"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/task"
)

type requestKind byte

const (
	reqUpdate requestKind = iota
	reqWait
)

type request struct {
	kind   requestKind
	pos    chunk.Pos
	status *chunk.Status
	done   *task.Future[struct{}]
}

// Actor - однопотоковий двигун світла
type Actor struct {
	log     *zap.Logger
	mailbox *task.Mailbox

	sendMu   sync.RWMutex
	closed   bool
	requests chan request
	stopped  chan struct{}

	mu      sync.Mutex
	lit     map[chunk.Pos]*chunk.Status
	updates int
}

// NewActor запускає горутину актора.
// Ф'ючери WaitForPendingLight заповнюються через mailbox.
func NewActor(log *zap.Logger, mailbox *task.Mailbox) *Actor {
	a := &Actor{
		log:      log,
		mailbox:  mailbox,
		requests: make(chan request, 1024),
		stopped:  make(chan struct{}),
		lit:      make(map[chunk.Pos]*chunk.Status),
	}
	go a.run()
	return a
}

func (a *Actor) run() {
	defer close(a.stopped)
	for req := range a.requests {
		switch req.kind {
		case reqUpdate:
			a.mu.Lock()
			if req.status == nil {
				delete(a.lit, req.pos)
			} else {
				a.lit[req.pos] = req.status
			}
			a.updates++
			a.mu.Unlock()
		case reqWait:
			a.complete(req.done)
		}
	}
}

func (a *Actor) complete(f *task.Future[struct{}]) {
	err := a.mailbox.Execute(func() { f.Complete(struct{}{}) })
	if err != nil {
		// головний потік вже не слухає
		f.Complete(struct{}{})
	}
}

func (a *Actor) send(req request) bool {
	a.sendMu.RLock()
	defer a.sendMu.RUnlock()
	if a.closed {
		return false
	}
	a.requests <- req
	return true
}

// UpdateChunkStatus повідомляє двигун, що чанк змінив статус.
// nil означає, що чанк вивантажено.
func (a *Actor) UpdateChunkStatus(pos chunk.Pos, status *chunk.Status) {
	if !a.send(request{kind: reqUpdate, pos: pos, status: status}) {
		a.log.Debug("Light update after close", zap.Int32("x", pos[0]), zap.Int32("z", pos[1]))
	}
}

// WaitForPendingLight повертає ф'ючер, який заповниться після обробки
// всіх запитів, надісланих до нього. Заповнюється на головному потоці.
func (a *Actor) WaitForPendingLight(pos chunk.Pos) *task.Future[struct{}] {
	f := task.NewFuture[struct{}]()
	if !a.send(request{kind: reqWait, pos: pos, done: f}) {
		f.Complete(struct{}{})
	}
	return f
}

// Status повертає останній статус, який бачив двигун
func (a *Actor) Status(pos chunk.Pos) (*chunk.Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.lit[pos]
	return s, ok
}

// Updates повертає кількість оброблених оновлень
func (a *Actor) Updates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updates
}

// Close зупиняє актор після обробки черги
func (a *Actor) Close() error {
	a.sendMu.Lock()
	if !a.closed {
		a.closed = true
		close(a.requests)
	}
	a.sendMu.Unlock()
	<-a.stopped
	a.log.Debug("Light actor stopped")
	return nil
}
