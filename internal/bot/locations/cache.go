package locations

import (
	"sort"

	"scrapbot.ai/internal/sim/grid"
)

// Set is a blacklist of coordinates proven stale.
type Set map[grid.Pos]struct{}

func (s Set) Add(p grid.Pos) { s[p] = struct{}{} }

func (s Set) Has(p grid.Pos) bool {
	_, ok := s[p]
	return ok
}

// Cache is an ordered list of discovered cells for one content kind.
// Coordinates are unique: Merge skips cells that are already present.
type Cache struct {
	coords []grid.Pos
	seen   map[grid.Pos]struct{}
}

func New() *Cache {
	return &Cache{seen: map[grid.Pos]struct{}{}}
}

func (c *Cache) Len() int { return len(c.coords) }

func (c *Cache) Contains(p grid.Pos) bool {
	_, ok := c.seen[p]
	return ok
}

// Merge appends newly discovered coordinates in the order given and returns
// how many were new.
func (c *Cache) Merge(coords []grid.Pos) int {
	added := 0
	for _, p := range coords {
		if _, ok := c.seen[p]; ok {
			continue
		}
		c.seen[p] = struct{}{}
		c.coords = append(c.coords, p)
		added++
	}
	return added
}

// SortByDistanceFrom orders the cache by Manhattan distance from origin.
// Equal distances keep their insertion order.
func (c *Cache) SortByDistanceFrom(origin grid.Pos) {
	sort.SliceStable(c.coords, func(i, j int) bool {
		return grid.Manhattan(c.coords[i], origin) < grid.Manhattan(c.coords[j], origin)
	})
}

// RemoveAll drops every coordinate in bad and returns how many were removed.
func (c *Cache) RemoveAll(bad Set) int {
	if len(bad) == 0 {
		return 0
	}
	kept := c.coords[:0]
	removed := 0
	for _, p := range c.coords {
		if bad.Has(p) {
			delete(c.seen, p)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	c.coords = kept
	return removed
}

// Candidates returns a copy of the current order for a phase to iterate while
// it builds its blacklist.
func (c *Cache) Candidates() []grid.Pos {
	out := make([]grid.Pos, len(c.coords))
	copy(out, c.coords)
	return out
}
