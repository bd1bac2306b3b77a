package inventory

import (
	"errors"
	"fmt"
	"sort"

	"scrapbot.ai/internal/sim/grid"
)

// DefaultCapacity matches the host backpack size.
const DefaultCapacity = 20

// ErrOverCapacity is returned when the host reports more content than the
// tracker can hold. The stored quantity is clamped so the capacity invariant
// still holds afterwards.
var ErrOverCapacity = errors.New("inventory over capacity")

// Tracker mirrors the host backpack. It is only mutated from collect/deposit
// results the host has already applied.
type Tracker struct {
	capacity int
	items    map[grid.ContentKind]int
}

func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{capacity: capacity, items: map[grid.ContentKind]int{}}
}

func (t *Tracker) Capacity() int { return t.capacity }

func (t *Tracker) Used() int {
	n := 0
	for _, q := range t.items {
		n += q
	}
	return n
}

// RemainingCapacity never goes below zero.
func (t *Tracker) RemainingCapacity() int {
	r := t.capacity - t.Used()
	if r < 0 {
		return 0
	}
	return r
}

// QuantityOf returns 0 for kinds never recorded.
func (t *Tracker) QuantityOf(kind grid.ContentKind) int {
	return t.items[kind]
}

// Add records n units picked up by the host.
func (t *Tracker) Add(kind grid.ContentKind, n int) error {
	if n <= 0 {
		return nil
	}
	free := t.RemainingCapacity()
	if n > free {
		t.items[kind] += free
		return fmt.Errorf("%w: add %d %s with %d free", ErrOverCapacity, n, kind, free)
	}
	t.items[kind] += n
	return nil
}

// Remove records n units accepted by the host and returns how many were
// actually removed, which is never more than currently held.
func (t *Tracker) Remove(kind grid.ContentKind, n int) int {
	held := t.items[kind]
	if n > held {
		n = held
	}
	if n <= 0 {
		return 0
	}
	if held == n {
		delete(t.items, kind)
	} else {
		t.items[kind] = held - n
	}
	return n
}

// Contents returns a copy keyed by kind name.
func (t *Tracker) Contents() map[string]int {
	out := make(map[string]int, len(t.items))
	for k, q := range t.items {
		out[k.String()] = q
	}
	return out
}

// Kinds lists the recorded kinds in a stable order.
func (t *Tracker) Kinds() []grid.ContentKind {
	out := make([]grid.ContentKind, 0, len(t.items))
	for k := range t.items {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
