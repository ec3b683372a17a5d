package extract

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"PostsScanner/internal/ports"
)

// seeMoreCandidates covers the expand-affordance variants observed in the
// wild; order matters, most common first.
var seeMoreCandidates = []string{
	`div[role="button"]:contains("See more")`,
	`div[role="button"]:contains("See More")`,
	`span:contains("See more")`,
	`a:contains("See more")`,
}

// InterceptCache holds full post text observed via passive network
// interception, keyed by item id. Entries are cleared between scrape cycles.
type InterceptCache struct {
	mu    sync.Mutex
	texts map[string]string
}

// NewInterceptCache builds an empty cache.
func NewInterceptCache() *InterceptCache {
	return &InterceptCache{texts: map[string]string{}}
}

// Put records network-observed full text for an item id. Empty values are
// ignored.
func (c *InterceptCache) Put(id, text string) {
	if id == "" || strings.TrimSpace(text) == "" {
		return
	}
	c.mu.Lock()
	c.texts[id] = text
	c.mu.Unlock()
}

// Get returns the cached full text, if any.
func (c *InterceptCache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.texts[id]
	return text, ok
}

// Clear drops all entries; called between scrape cycles to bound memory and
// avoid cross-cycle staleness.
func (c *InterceptCache) Clear() {
	c.mu.Lock()
	c.texts = map[string]string{}
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *InterceptCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

// Capture resolves the fullest available text for one item: the interception
// cache is authoritative over whatever the DOM currently renders.
type Capture struct {
	cache *InterceptCache
}

// NewCapture wires the interception cache.
func NewCapture(cache *InterceptCache) *Capture {
	if cache == nil {
		cache = NewInterceptCache()
	}
	return &Capture{cache: cache}
}

// Cache exposes the underlying interception cache for the network layer.
func (f *Capture) Cache() *InterceptCache { return f.cache }

// maxExpandClicks bounds the expansion loop against markup that re-renders
// an affordance on every click.
const maxExpandClicks = 32

// ExpandTruncated clicks expand affordances until none resolves, then
// returns the container's rendered HTML. Each click removes the affordance
// it expands, so repeated rounds reach every truncated post; content behind
// a stubborn affordance simply stays truncated.
func (f *Capture) ExpandTruncated(ctx context.Context, page ports.Page, containerSel string) (string, error) {
	for i := 0; i < maxExpandClicks; i++ {
		if err := Click(ctx, page, seeMoreCandidates...); err != nil {
			break
		}
	}
	return page.HTML(ctx, containerSel)
}

// Text returns the preferred text for the item: cached network capture first,
// DOM-read text otherwise.
func (f *Capture) Text(id string, domSel *goquery.Selection) string {
	if text, ok := f.cache.Get(id); ok {
		return text
	}
	if domSel == nil {
		return ""
	}
	return domSel.Text()
}
