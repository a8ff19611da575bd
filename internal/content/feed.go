// Package content powers the portal blog: posts are imported from RSS/Atom
// feeds and rendered through Liquid templates.
package content

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
)

// Post is a blog post imported from a feed or authored directly.
type Post struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Summary     string    `json:"summary"`
	Body        string    `json:"body"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	ImportedAt  time.Time `json:"imported_at"`
}

// Importer pulls posts out of RSS/Atom feeds and keeps an in-memory store
// deduplicated by GUID.
type Importer struct {
	parser *gofeed.Parser

	mu     sync.RWMutex
	posts  map[string]Post // keyed by GUID
	maxPer int
}

// NewImporter creates an Importer. maxPerImport caps how many new items a
// single import accepts; zero means the default of 5.
func NewImporter(maxPerImport int) *Importer {
	if maxPerImport <= 0 {
		maxPerImport = 5
	}
	return &Importer{
		parser: gofeed.NewParser(),
		posts:  make(map[string]Post),
		maxPer: maxPerImport,
	}
}

// Import fetches the feed and stores any items not seen before, newest
// first, up to the per-import cap. Returns the newly imported posts.
func (im *Importer) Import(ctx context.Context, orgID, feedURL string) ([]Post, error) {
	feed, err := im.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	items := make([]*gofeed.Item, len(feed.Items))
	copy(items, feed.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return itemTime(items[i]).After(itemTime(items[j]))
	})

	im.mu.Lock()
	defer im.mu.Unlock()

	var imported []Post
	for _, item := range items {
		if len(imported) >= im.maxPer {
			break
		}
		post := postFromItem(orgID, item)
		if _, seen := im.posts[post.GUID]; seen {
			continue
		}
		im.posts[post.GUID] = post
		imported = append(imported, post)
	}
	return imported, nil
}

// Posts returns all imported posts for an org, newest first.
func (im *Importer) Posts(orgID string) []Post {
	im.mu.RLock()
	defer im.mu.RUnlock()

	var out []Post
	for _, p := range im.posts {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// BySlug looks a post up by its slug.
func (im *Importer) BySlug(orgID, slug string) (Post, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	for _, p := range im.posts {
		if p.OrgID == orgID && p.Slug == slug {
			return p, true
		}
	}
	return Post{}, false
}

func postFromItem(orgID string, item *gofeed.Item) Post {
	post := Post{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		GUID:        item.GUID,
		Title:       item.Title,
		Slug:        Slugify(item.Title),
		Summary:     StripHTML(item.Description),
		Body:        item.Content,
		Link:        item.Link,
		PublishedAt: itemTime(item),
		ImportedAt:  time.Now().UTC(),
	}
	if post.Body == "" {
		post.Body = item.Description
	}

	// Use link as GUID if none provided
	if post.GUID == "" {
		post.GUID = item.Link
	}

	if item.Image != nil {
		post.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				post.ImageURL = enc.URL
				break
			}
		}
	}

	if len(item.Authors) > 0 {
		post.Author = item.Authors[0].Name
	} else if item.Author != nil {
		post.Author = item.Author.Name
	}

	post.Categories = append(post.Categories, item.Categories...)
	return post
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Now()
}

var (
	htmlTagRe  = regexp.MustCompile(`<[^>]*>`)
	nonSlugRe  = regexp.MustCompile(`[^a-z0-9]+`)
	edgeDashRe = regexp.MustCompile(`^-+|-+$`)
)

// StripHTML removes HTML tags, decodes entities and normalizes whitespace.
func StripHTML(input string) string {
	text := htmlTagRe.ReplaceAllString(input, "")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// Slugify converts a title into a URL-safe slug.
func Slugify(title string) string {
	slug := strings.ToLower(StripHTML(title))
	slug = nonSlugRe.ReplaceAllString(slug, "-")
	return edgeDashRe.ReplaceAllString(slug, "")
}
