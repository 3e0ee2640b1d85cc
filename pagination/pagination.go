// Package pagination exposes a growing prefix window over an ordered set.
package pagination

import (
	"sync"

	"rentscout/models"
)

// DefaultPageSize is used when a Paginator is built with a non-positive size.
const DefaultPageSize = 10

// Paginator keeps the first pages*size items of its set visible.
// Safe for concurrent use.
type Paginator struct {
	mu    sync.RWMutex
	size  int
	pages int
	items []models.Listing
}

func New(size int) *Paginator {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Paginator{size: size, pages: 1}
}

// Reset replaces the underlying set and returns the window to the first page.
func (p *Paginator) Reset(items []models.Listing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
	p.pages = 1
}

// LoadMore grows the window by one page. Returns false when there was
// nothing more to show.
func (p *Paginator) LoadMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visibleLen() >= len(p.items) {
		return false
	}
	p.pages++
	return true
}

// Visible returns a copy of the current window.
func (p *Paginator) Visible() []models.Listing {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Listing, p.visibleLen())
	copy(out, p.items)
	return out
}

func (p *Paginator) HasMore() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visibleLen() < len(p.items)
}

func (p *Paginator) Total() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Snapshot returns the visible window, whether more remain, and the total
// in one read.
func (p *Paginator) Snapshot() ([]models.Listing, bool, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := p.visibleLen()
	out := make([]models.Listing, n)
	copy(out, p.items)
	return out, n < len(p.items), len(p.items)
}

func (p *Paginator) PageSize() int {
	return p.size
}

// All returns a copy of the full underlying set.
func (p *Paginator) All() []models.Listing {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Listing, len(p.items))
	copy(out, p.items)
	return out
}

func (p *Paginator) visibleLen() int {
	return min(p.pages*p.size, len(p.items))
}
