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
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"FlowyChunks/world/chunk"
)

// Pool - фіксований набір воркерів, що розбирають чергу
type Pool struct {
	log   *zap.Logger
	queue *Queue
	size  int
}

// NewPool створює пул. Пул розміром 0 не запускає воркерів,
// тоді чергу розбирає головний потік через Mailbox.
func NewPool(log *zap.Logger, size int) *Pool {
	return &Pool{log: log, queue: NewQueue(), size: max(size, 0)}
}

func (p *Pool) Queue() *Queue { return p.queue }
func (p *Pool) Size() int     { return p.size }

// Run запускає воркерів і чекає доки контекст не скасують або пул не закриють
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			p.queue.Close()
		case <-p.queue.closedCh:
		}
		return nil
	})
	for i := 0; i < p.size; i++ {
		log := p.log.With(zap.Int("worker", i))
		g.Go(func() error {
			for {
				pos, fn, ok := p.queue.Next()
				if !ok {
					return nil
				}
				RunTask(log, p.queue, pos, fn)
			}
		})
	}
	p.log.Info("Workers started", zap.Int("size", p.size))
	return g.Wait()
}

// Close зупиняє воркерів після поточних задач
func (p *Pool) Close() { p.queue.Close() }

// RunTask виконує одну задачу з черги і звільняє її чанк.
// Паніка в задачі логується і не вбиває воркера.
func RunTask(log *zap.Logger, q *Queue, pos chunk.Pos, fn func()) {
	defer q.Done(pos)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Chunk task panicked",
				zap.Int32("x", pos[0]), zap.Int32("z", pos[1]),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
