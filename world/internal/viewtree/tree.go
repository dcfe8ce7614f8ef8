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

// Package viewtree - дерево обмежувальних прямокутників (BVH)
// для зон видимості гравців. Кожен вузол містить прямокутник,
// який покриває прямокутники всіх його нащадків, тому пошук
// гравців, що бачать чанк, не перебирає всіх гравців.
package viewtree

import (
	"container/heap"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Node - вузол дерева. Value заповнене тільки в листах.
type Node[I constraints.Signed, V any] struct {
	Box      Rect[I]
	Value    V
	parent   *Node[I, V]
	children [2]*Node[I, V]
	isLeaf   bool
}

func (n *Node[I, V]) sibling(not *Node[I, V]) *Node[I, V] {
	switch not {
	case n.children[0]:
		return n.children[1]
	case n.children[1]:
		return n.children[0]
	}
	panic("viewtree: node is not a child of its parent")
}

func (n *Node[I, V]) childPointer(child *Node[I, V]) **Node[I, V] {
	switch child {
	case n.children[0]:
		return &n.children[0]
	case n.children[1]:
		return &n.children[1]
	}
	panic("viewtree: node is not a child of its parent")
}

func (n *Node[I, V]) each(test func(Rect[I]) bool, foreach func(*Node[I, V]) bool) bool {
	if n == nil || !test(n.Box) {
		return true
	}
	if n.isLeaf {
		return foreach(n)
	}
	return n.children[0].each(test, foreach) && n.children[1].each(test, foreach)
}

// Tree - дерево прямокутників. Нульове значення готове до роботи.
// Не потокобезпечне.
type Tree[I constraints.Signed, V any] struct {
	root *Node[I, V]
	size int
}

// Insert додає лист і повертає його вузол для Delete або Move.
// Сусід шукається за мінімальним приростом периметру предків.
func (t *Tree[I, V]) Insert(box Rect[I], value V) *Node[I, V] {
	n := &Node[I, V]{Box: box, Value: value, isLeaf: true}
	t.size++
	if t.root == nil {
		t.root = n
		return n
	}

	sibling := t.root
	bestCost := t.root.Box.Union(box).Perimeter()
	parentTo := &t.root

	var queue searchHeap[I, V]
	heap.Push(&queue, searchItem[I, V]{node: t.root, parentTo: &t.root})
	leafCost := box.Perimeter()
	for queue.Len() > 0 {
		p := heap.Pop(&queue).(searchItem[I, V])
		merged := p.node.Box.Union(box).Perimeter()
		cost := p.inherited + merged
		if cost <= bestCost {
			bestCost = cost
			sibling = p.node
			parentTo = p.parentTo
		}
		inherited := p.inherited + merged - p.node.Box.Perimeter()
		if !p.node.isLeaf && inherited+leafCost < bestCost {
			for i := range p.node.children {
				heap.Push(&queue, searchItem[I, V]{
					node:      p.node.children[i],
					parentTo:  &p.node.children[i],
					inherited: inherited,
				})
			}
		}
	}

	parent := &Node[I, V]{
		Box:      sibling.Box.Union(box),
		parent:   sibling.parent,
		children: [2]*Node[I, V]{sibling, n},
	}
	*parentTo = parent
	n.parent = parent
	sibling.parent = parent

	for p := parent; p != nil; p = p.parent {
		p.Box = p.children[0].Box.Union(p.children[1].Box)
		t.rotate(p)
	}
	return n
}

// Delete прибирає лист з дерева і повертає його значення
func (t *Tree[I, V]) Delete(n *Node[I, V]) V {
	t.size--
	if n.parent == nil {
		t.root = nil
		return n.Value
	}
	sibling := n.parent.sibling(n)
	grand := n.parent.parent
	if grand == nil {
		t.root = sibling
		sibling.parent = nil
	} else {
		*grand.childPointer(n.parent) = sibling
		sibling.parent = grand
		for p := grand; p != nil; p = p.parent {
			p.Box = p.children[0].Box.Union(p.children[1].Box)
			t.rotate(p)
		}
	}
	n.parent = nil
	return n.Value
}

// Move змінює прямокутник листа. Повертає новий вузол.
func (t *Tree[I, V]) Move(n *Node[I, V], box Rect[I]) *Node[I, V] {
	v := t.Delete(n)
	return t.Insert(box, v)
}

// rotate міняє дитину вузла з його братом, якщо це зменшує периметр
func (t *Tree[I, V]) rotate(n *Node[I, V]) {
	if n.isLeaf || n.parent == nil {
		return
	}
	sibling := n.parent.sibling(n)
	current := n.Box.Perimeter()
	for i := range n.children {
		keep, swap := n.children[i], n.children[1-i]
		if keep.Box.Union(sibling.Box).Perimeter() >= current {
			continue
		}
		// swap займає місце брата, брат стає дитиною n
		*n.parent.childPointer(sibling) = swap
		swap.parent = n.parent
		n.children = [2]*Node[I, V]{keep, sibling}
		sibling.parent = n
		n.Box = keep.Box.Union(sibling.Box)
		return
	}
}

// Find викликає foreach для кожного листа, прямокутник якого проходить test.
// Якщо foreach повертає false, пошук зупиняється.
func (t *Tree[I, V]) Find(test func(Rect[I]) bool, foreach func(*Node[I, V]) bool) {
	t.root.each(test, foreach)
}

// Len повертає кількість листів
func (t *Tree[I, V]) Len() int { return t.size }

func (t *Tree[I, V]) String() string { return t.root.String() }

func (n *Node[I, V]) String() string {
	if n == nil {
		return "{}"
	}
	if n.isLeaf {
		return fmt.Sprint(n.Value)
	}
	return fmt.Sprintf("{%v, %v}", n.children[0], n.children[1])
}

// TouchPoint - тест для пошуку прямокутників, що містять точку
func TouchPoint[I constraints.Signed](p [2]I) func(Rect[I]) bool {
	return func(r Rect[I]) bool { return r.Contains(p) }
}

// TouchRect - тест для пошуку прямокутників, що перетинають other
func TouchRect[I constraints.Signed](other Rect[I]) func(Rect[I]) bool {
	return func(r Rect[I]) bool { return r.Touch(other) }
}

type (
	searchHeap[I constraints.Signed, V any] []searchItem[I, V]
	searchItem[I constraints.Signed, V any] struct {
		node      *Node[I, V]
		parentTo  **Node[I, V]
		inherited int64
	}
)

func (h searchHeap[I, V]) Len() int           { return len(h) }
func (h searchHeap[I, V]) Less(i, j int) bool { return h[i].inherited < h[j].inherited }
func (h searchHeap[I, V]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *searchHeap[I, V]) Push(x any)        { *h = append(*h, x.(searchItem[I, V])) }
func (h *searchHeap[I, V]) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
