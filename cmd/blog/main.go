// Command blog imports posts from an RSS/Atom feed and optionally renders
// each one through a Liquid template.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/content"
	"github.com/ignite/agency-portal/internal/pkg/logger"
)

func main() {
	feedURL := flag.String("feed", "", "feed URL (defaults to content.feed_url from config)")
	templatePath := flag.String("template", "", "optional Liquid template rendered per post")
	maxPosts := flag.Int("max", 25, "maximum posts per import")
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Warn("config load failed, using defaults", "error", err.Error())
		cfg = config.Default()
	}

	url := *feedURL
	if url == "" {
		url = cfg.Content.FeedURL
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "blog: no feed URL; pass -feed or set content.feed_url")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Content.Timeout())
	defer cancel()

	importer := content.NewImporter(*maxPosts)
	posts, err := importer.Import(ctx, cfg.Org.OrgID, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blog: %v\n", err)
		os.Exit(1)
	}
	logger.Info("feed imported", "url", url, "posts", len(posts))

	if *templatePath == "" {
		for _, post := range posts {
			fmt.Printf("%s  %-40s  %s\n",
				post.PublishedAt.Format("2006-01-02"), post.Slug, post.Title)
		}
		return
	}

	raw, err := os.ReadFile(*templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blog: %v\n", err)
		os.Exit(1)
	}

	renderer := content.NewRenderer()
	for _, post := range posts {
		out, err := renderer.Render(*templatePath, string(raw), postBindings(post))
		if err != nil {
			logger.Warn("render failed, skipping post", "slug", post.Slug, "error", err.Error())
			continue
		}
		fmt.Println(out)
	}
}

func postBindings(post content.Post) map[string]interface{} {
	return map[string]interface{}{
		"title":        post.Title,
		"slug":         post.Slug,
		"summary":      post.Summary,
		"body":         post.Body,
		"link":         post.Link,
		"image_url":    post.ImageURL,
		"author":       post.Author,
		"published_at": post.PublishedAt.Format(time.RFC3339),
	}
}
