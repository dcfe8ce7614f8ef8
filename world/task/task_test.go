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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"FlowyChunks/world/chunk"
)

func TestFutureCompleteOnce(t *testing.T) {
	f := NewFuture[int]()
	var got []int
	f.Then(func(v int) { got = append(got, v) })
	if !f.Complete(1) {
		t.Fatal("first Complete must succeed")
	}
	if f.Complete(2) {
		t.Error("second Complete must be rejected")
	}
	f.Then(func(v int) { got = append(got, v*10) })
	if len(got) != 2 || got[0] != 1 || got[1] != 10 {
		t.Errorf("callbacks saw %v", got)
	}
}

func TestFutureCombinators(t *testing.T) {
	a, b := NewFuture[int](), NewFuture[int]()
	sum := Combine(a, b, func(x, y int) int { return x + y })
	all := All([]*Future[int]{a, b, Completed(3)})
	composed := Compose(a, func(x int) *Future[string] {
		return Map(b, func(y int) string {
			if x < y {
				return "less"
			}
			return "more"
		})
	})
	b.Complete(5)
	if sum.Done() || all.Done() || composed.Done() {
		t.Fatal("combined futures completed before their inputs")
	}
	a.Complete(2)
	if v, ok := sum.Now(); !ok || v != 7 {
		t.Errorf("sum = %v, %v", v, ok)
	}
	if v, ok := all.Now(); !ok || len(v) != 3 || v[0] != 2 || v[1] != 5 || v[2] != 3 {
		t.Errorf("all = %v, %v", v, ok)
	}
	if v, _ := composed.Now(); v != "less" {
		t.Errorf("composed = %q", v)
	}
}

func TestFutureWait(t *testing.T) {
	f := NewFuture[string]()
	go f.Complete("ok")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if v, err := f.Wait(ctx); err != nil || v != "ok" {
		t.Errorf("Wait = %q, %v", v, err)
	}
}

func TestQueuePriority(t *testing.T) {
	q := NewQueue()
	var order []string
	q.Submit(chunk.Pos{0, 0}, 33, func() { order = append(order, "far") })
	q.Submit(chunk.Pos{1, 0}, 20, func() { order = append(order, "near") })
	q.Submit(chunk.Pos{2, 0}, 33, func() { order = append(order, "far2") })
	q.SetLevel(chunk.Pos{2, 0}, 10)
	for {
		pos, fn, ok := q.TryNext()
		if !ok {
			break
		}
		fn()
		q.Done(pos)
	}
	want := []string{"far2", "near", "far"}
	if len(order) != len(want) {
		t.Fatalf("ran %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestQueueOneTaskPerChunk(t *testing.T) {
	q := NewQueue()
	pos := chunk.Pos{4, 4}
	q.Submit(pos, 0, func() {})
	q.Submit(pos, 0, func() {})
	_, _, ok := q.TryNext()
	if !ok {
		t.Fatal("expected a task")
	}
	if _, _, ok := q.TryNext(); ok {
		t.Fatal("second task of a running chunk must wait")
	}
	if !q.Running(pos) {
		t.Error("chunk should be running")
	}
	q.Done(pos)
	if _, _, ok := q.TryNext(); !ok {
		t.Fatal("second task should be available after Done")
	}
	q.Done(pos)
	if q.Len() != 0 {
		t.Errorf("queue still has %d tasks", q.Len())
	}
}

func TestPoolExclusive(t *testing.T) {
	log := zaptest.NewLogger(t)
	p := NewPool(log, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	var (
		wg      sync.WaitGroup
		running [4]atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 200; i++ {
		i := i % 4
		wg.Add(1)
		p.Queue().Submit(chunk.Pos{int32(i), 0}, i, func() {
			defer wg.Done()
			if running[i].Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Microsecond * 50)
			running[i].Add(-1)
		})
	}
	wg.Wait()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if overlap.Load() {
		t.Error("two tasks of the same chunk ran at once")
	}
}

func TestManagedBlockPumps(t *testing.T) {
	m := NewMailbox(zaptest.NewLogger(t))
	q := NewQueue()
	m.Drain(q)

	f := NewFuture[int]()
	// the task completes the future through the mailbox, as workers do
	q.Submit(chunk.Pos{}, 0, func() {
		go m.Execute(func() { f.Complete(42) })
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.ManagedBlock(ctx, f.Done); err != nil {
		t.Fatalf("ManagedBlock: %v", err)
	}
	if v, _ := f.Now(); v != 42 {
		t.Errorf("value = %d", v)
	}
}

func TestMailboxClosed(t *testing.T) {
	m := NewMailbox(zaptest.NewLogger(t))
	m.Close()
	if err := m.Execute(func() {}); err != ErrMailboxClosed {
		t.Errorf("Execute after Close = %v", err)
	}
}

func TestRunTaskRecovers(t *testing.T) {
	q := NewQueue()
	pos := chunk.Pos{1, 1}
	q.Submit(pos, 0, func() { panic("boom") })
	p, fn, _ := q.TryNext()
	RunTask(zaptest.NewLogger(t), q, p, fn)
	if q.Running(pos) {
		t.Error("chunk must be released after a panic")
	}
}
