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

// Йоу, чат! Це пріоритетна черга задач для чанків.
// Задачі групуються по чанках, а чанки - по рівнях квитків:
// чим менший рівень, тим раніше чанк отримає воркера.
// Для одного чанка одночасно виконується не більше однієї задачі.

package task

import (
	"sync"

	"FlowyChunks/world/chunk"
)

type chunkTasks struct {
	pos     chunk.Pos
	level   int
	tasks   []func()
	queued  bool // ключ лежить у кошику свого рівня
	running bool
}

// Queue - черга задач з кошиками за рівнем
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets [][]int64
	chunks  map[int64]*chunkTasks
	pending int
	notify  func()

	closed   bool
	closedCh chan struct{}
}

func NewQueue() *Queue {
	q := &Queue{
		buckets:  make([][]int64, chunk.NotLoaded+1),
		chunks:   make(map[int64]*chunkTasks),
		closedCh: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Submit додає задачу для чанка pos. Рівень використовується тільки
// якщо для чанка ще немає задач, далі його змінює SetLevel.
func (q *Queue) Submit(pos chunk.Pos, level int, fn func()) {
	q.mu.Lock()
	key := pos.Long()
	ct, ok := q.chunks[key]
	if !ok {
		ct = &chunkTasks{pos: pos, level: chunk.ClampLevel(level)}
		q.chunks[key] = ct
	}
	ct.tasks = append(ct.tasks, fn)
	q.pending++
	q.enqueue(key, ct)
	notify := q.notify
	q.mu.Unlock()

	q.cond.Signal()
	if notify != nil {
		notify()
	}
}

// SetLevel змінює пріоритет чанка
func (q *Queue) SetLevel(pos chunk.Pos, level int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := pos.Long()
	ct, ok := q.chunks[key]
	level = chunk.ClampLevel(level)
	if !ok || ct.level == level {
		return
	}
	ct.level = level
	if ct.queued {
		// старий запис у кошику стане застарілим і буде пропущений
		q.buckets[level] = append(q.buckets[level], key)
	}
}

func (q *Queue) enqueue(key int64, ct *chunkTasks) {
	if ct.queued || ct.running || len(ct.tasks) == 0 {
		return
	}
	ct.queued = true
	q.buckets[ct.level] = append(q.buckets[ct.level], key)
}

// poll знаходить наступну задачу. Викликається під м'ютексом.
func (q *Queue) poll() (chunk.Pos, func(), bool) {
	for level := range q.buckets {
		bucket := q.buckets[level]
		for len(bucket) > 0 {
			key := bucket[0]
			bucket = bucket[1:]
			ct, ok := q.chunks[key]
			if !ok || !ct.queued || ct.level != level {
				continue
			}
			q.buckets[level] = bucket
			ct.queued = false
			ct.running = true
			fn := ct.tasks[0]
			ct.tasks[0] = nil
			ct.tasks = ct.tasks[1:]
			q.pending--
			return ct.pos, fn, true
		}
		q.buckets[level] = bucket[:0]
	}
	return chunk.Pos{}, nil, false
}

// TryNext повертає наступну задачу без блокування.
// Після виконання задачі треба викликати Done.
func (q *Queue) TryNext() (chunk.Pos, func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.poll()
}

// Next чекає на наступну задачу. Повертає false коли черга закрита.
func (q *Queue) Next() (chunk.Pos, func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return chunk.Pos{}, nil, false
		}
		if pos, fn, ok := q.poll(); ok {
			return pos, fn, true
		}
		q.cond.Wait()
	}
}

// Done звільняє чанк після виконання задачі
func (q *Queue) Done(pos chunk.Pos) {
	q.mu.Lock()
	key := pos.Long()
	ct, ok := q.chunks[key]
	if !ok {
		q.mu.Unlock()
		return
	}
	ct.running = false
	if len(ct.tasks) == 0 {
		delete(q.chunks, key)
		q.mu.Unlock()
		return
	}
	q.enqueue(key, ct)
	notify := q.notify
	q.mu.Unlock()

	q.cond.Signal()
	if notify != nil {
		notify()
	}
}

// Len повертає кількість задач, що чекають
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Running повідомляє чи для чанка зараз виконується задача
func (q *Queue) Running(pos chunk.Pos) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	ct, ok := q.chunks[pos.Long()]
	return ok && ct.running
}

// Close будить всіх, хто чекає в Next
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.closedCh)
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue) setNotify(fn func()) {
	q.mu.Lock()
	q.notify = fn
	q.mu.Unlock()
}
