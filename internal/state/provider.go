// Package state keeps the per-session window of loaded briefings.
package state

import (
	"context"
	"sync"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/store"
)

// PageSize is the number of briefings fetched per page.
const PageSize = 6

// Store is the subset of the data store the provider needs.
type Store interface {
	List(ctx context.Context, ownerID uint, page, pageSize int) (store.Page, error)
	Create(ctx context.Context, ownerID uint, title string, doc briefing.Document) (*briefing.Briefing, error)
	Update(ctx context.Context, ownerID uint, id, title string, doc briefing.Document) (*briefing.Briefing, error)
	Delete(ctx context.Context, ownerID uint, id string) error
}

// Snapshot is a copy of the provider's observable state.
type Snapshot struct {
	Items   []briefing.Briefing `json:"items"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
	Page    int                 `json:"page"`
	HasMore bool                `json:"has_more"`
	Total   int64               `json:"total"`
}

// Provider holds one owner's loaded briefings. Mutators return errors rather
// than panicking; the last failure message is kept in Error.
//
// loading is a coarse in-flight flag: LoadMore refuses to start while it is
// set, Create/Update/Delete do not wait for each other. When a caller's
// context is done by the time a response arrives, the response is dropped
// but the loading flag is still cleared.
type Provider struct {
	store   Store
	ownerID uint

	mu       sync.Mutex
	items    []briefing.Briefing
	loading  bool
	inflight int
	errMsg   string
	page     int
	hasMore  bool
	total    int64
}

// NewProvider returns an empty provider. Call Refresh to load the first page.
func NewProvider(s Store, ownerID uint) *Provider {
	return &Provider{store: s, ownerID: ownerID, hasMore: true}
}

// Snapshot returns a copy of the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := make([]briefing.Briefing, len(p.items))
	copy(items, p.items)
	return Snapshot{
		Items:   items,
		Loading: p.loading,
		Error:   p.errMsg,
		Page:    p.page,
		HasMore: p.hasMore,
		Total:   p.total,
	}
}

// Refresh loads page 1 and replaces the sequence.
func (p *Provider) Refresh(ctx context.Context) error {
	p.begin()
	defer p.end()
	res, err := p.store.List(ctx, p.ownerID, 1, PageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errMsg = err.Error()
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.items = res.Items
	p.page = 1
	p.total = res.Total
	p.hasMore = hasMore(len(p.items), res.Total)
	return nil
}

// LoadMore fetches the rows after the loaded ones and appends them. It
// reports false without touching any state when a load is in flight or
// nothing is left. The page counter advances only once the fetch succeeds.
//
// The window starts at len(items), not at page*PageSize, so rows that slid
// up after a Delete are still picked up. When that offset falls inside a
// page, the page holding it and the one after are both requested.
func (p *Provider) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return false, nil
	}
	first := len(p.items)/PageSize + 1
	pages := []int{first}
	if len(p.items)%PageSize != 0 {
		pages = append(pages, first+1)
	}
	p.loading = true
	p.inflight++
	p.mu.Unlock()

	defer p.end()
	var (
		fetched []briefing.Briefing
		total   int64
	)
	for _, page := range pages {
		res, err := p.store.List(ctx, p.ownerID, page, PageSize)
		if err != nil {
			p.mu.Lock()
			p.errMsg = err.Error()
			p.mu.Unlock()
			return false, err
		}
		fetched = append(fetched, res.Items...)
		total = res.Total
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	p.items = appendUnique(p.items, fetched)
	p.page = pages[len(pages)-1]
	p.total = total
	p.hasMore = hasMore(len(p.items), total)
	return true, nil
}

// Create persists a new briefing and puts it at the front of the sequence.
func (p *Provider) Create(ctx context.Context, title string, doc briefing.Document) (*briefing.Briefing, error) {
	p.begin()
	defer p.end()
	created, err := p.store.Create(ctx, p.ownerID, title, doc)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errMsg = err.Error()
		return nil, err
	}
	if ctx.Err() != nil {
		return created, ctx.Err()
	}
	p.items = append([]briefing.Briefing{*created}, p.items...)
	p.total++
	return created, nil
}

// Update rewrites an existing briefing and replaces it where it sits in the
// sequence.
func (p *Provider) Update(ctx context.Context, id, title string, doc briefing.Document) (*briefing.Briefing, error) {
	p.begin()
	defer p.end()
	updated, err := p.store.Update(ctx, p.ownerID, id, title, doc)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errMsg = err.Error()
		return nil, err
	}
	if ctx.Err() != nil {
		return updated, ctx.Err()
	}
	for i := range p.items {
		if p.items[i].ID == id {
			p.items[i] = *updated
			break
		}
	}
	return updated, nil
}

// Delete removes a briefing from the store and from the sequence.
func (p *Provider) Delete(ctx context.Context, id string) error {
	p.begin()
	defer p.end()
	err := p.store.Delete(ctx, p.ownerID, id)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errMsg = err.Error()
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	kept := p.items[:0:0]
	removed := false
	for _, b := range p.items {
		if b.ID == id {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	p.items = kept
	if removed && p.total > 0 {
		p.total--
	}
	if p.page > 0 {
		p.hasMore = hasMore(len(p.items), p.total)
	}
	return nil
}

// Find returns the loaded briefing with the given id.
func (p *Provider) Find(id string) (briefing.Briefing, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.items {
		if b.ID == id {
			return b, true
		}
	}
	return briefing.Briefing{}, false
}

func (p *Provider) begin() {
	p.mu.Lock()
	p.loading = true
	p.inflight++
	p.mu.Unlock()
}

func (p *Provider) end() {
	p.mu.Lock()
	p.inflight--
	if p.inflight <= 0 {
		p.inflight = 0
		p.loading = false
	}
	p.mu.Unlock()
}

// appendUnique appends items not already loaded. Rows prepended by Create
// shift the offset window, so a later page can repeat the tail of an earlier one.
func appendUnique(items, more []briefing.Briefing) []briefing.Briefing {
	seen := make(map[string]struct{}, len(items))
	for _, b := range items {
		seen[b.ID] = struct{}{}
	}
	for _, b := range more {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		items = append(items, b)
	}
	return items
}

// hasMore reports whether rows exist past the loaded ones. Without
// concurrent writes this equals page*PageSize < total.
func hasMore(loaded int, total int64) bool {
	return int64(loaded) < total
}
