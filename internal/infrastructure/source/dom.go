package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/extract"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/source"
)

// Selector candidates, most specific first. The rendered markup drifts
// between rollouts, so every lookup carries fallbacks.
var (
	feedCandidates = []string{
		`div[role="feed"]`,
		`div[data-pagelet="MainFeed"]`,
		`#contentArea`,
	}
	postCandidates = []string{
		`div[role="article"]`,
		`div[data-ft]`,
		`div.userContentWrapper`,
	}
	permalinkCandidates = []string{
		`a[href*="/posts/"]`,
		`a[href*="story_fbid"]`,
		`a[href*="/permalink/"]`,
	}
	authorCandidates = []string{
		`h3 a[href]`,
		`h2 a[href]`,
		`strong a[href]`,
		`a[data-hovercard][href]`,
	}
	textCandidates = []string{
		`div[data-ad-preview="message"]`,
		`div[data-testid="post_message"]`,
		`div.userContent`,
	}
	structuredAttrs = []string{"data-ft", "data-store"}
)

// DOMSource scrapes the rendered feed of a live browser session.
type DOMSource struct {
	page        ports.Page
	capture     *extract.Capture
	logger      *slog.Logger
	waitTimeout time.Duration
}

var _ source.Source = (*DOMSource)(nil)

// NewDOMSource wires a browser page with the full-text capture helper.
func NewDOMSource(page ports.Page, capture *extract.Capture, log *slog.Logger) *DOMSource {
	if capture == nil {
		capture = extract.NewCapture(nil)
	}
	return &DOMSource{
		page:        page,
		capture:     capture,
		logger:      log,
		waitTimeout: 15 * time.Second,
	}
}

// Name identifies the strategy inside the registry.
func (d *DOMSource) Name() string { return "live-dom" }

// Tag reports the origin stamped onto collected items.
func (d *DOMSource) Tag() domain.SourceTag { return domain.SourceLiveDOM }

// Collect waits for the feed, expands truncated posts, then walks every post
// container and extracts raw items. Posts missing all identity and text are
// skipped, not failed.
func (d *DOMSource) Collect(ctx context.Context) ([]domain.RawItem, error) {
	feedSel, err := extract.Wait(ctx, d.page, d.waitTimeout, feedCandidates...)
	if err != nil {
		return nil, fmt.Errorf("wait for feed: %w", err)
	}

	html, err := d.capture.ExpandTruncated(ctx, d.page, feedSel)
	if err != nil {
		return nil, fmt.Errorf("read feed html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse feed html: %w", err)
	}

	posts, matched, err := extract.FindAll(doc.Selection, postCandidates...)
	if err != nil {
		d.debug("no post containers in feed", "feed_selector", feedSel)
		return nil, nil
	}
	d.debug("post containers found", "selector", matched, "count", posts.Length())

	items := make([]domain.RawItem, 0, posts.Length())
	posts.Each(func(i int, post *goquery.Selection) {
		item := d.extractItem(post)
		if item.StructuredID == "" && item.FallbackID == "" && item.Text == "" {
			return
		}
		items = append(items, item)
	})

	d.capture.Cache().Clear()
	d.debug("dom collect done", "items", len(items))
	return items, nil
}

func (d *DOMSource) extractItem(post *goquery.Selection) domain.RawItem {
	item := domain.RawItem{Source: domain.SourceLiveDOM}

	for _, attr := range structuredAttrs {
		if v, ok := post.Attr(attr); ok && strings.TrimSpace(v) != "" {
			item.StructuredID = v
			break
		}
	}
	if id, ok := post.Attr("id"); ok {
		item.FallbackID = id
	}

	if link, _, err := extract.FindFirst(post, permalinkCandidates...); err == nil {
		item.PermalinkURL, _ = link.Attr("href")
	}
	if author, _, err := extract.FindFirst(post, authorCandidates...); err == nil {
		item.AuthorHref, _ = author.Attr("href")
	}

	var domText *goquery.Selection
	if textSel, _, err := extract.FindFirst(post, textCandidates...); err == nil {
		domText = textSel
	}

	cacheKey := item.FallbackID
	if cacheKey == "" {
		cacheKey = item.StructuredID
	}
	item.Text = d.capture.Text(cacheKey, domText)

	return item
}

func (d *DOMSource) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
