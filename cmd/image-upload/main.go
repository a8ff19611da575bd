// Command image-upload pushes a local image to the hosting bucket and
// prints the CDN URLs for the original and its resized variants.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/images"
	"github.com/ignite/agency-portal/internal/pkg/logger"
)

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: image-upload <file>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Warn("config load failed, using defaults", "error", err.Error())
		cfg = config.Default()
	}

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		fmt.Fprintf(os.Stderr, "image-upload: unsupported file extension %q\n", filepath.Ext(path))
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image-upload: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	svc, err := images.NewService(ctx, cfg.Images)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image-upload: %v\n", err)
		os.Exit(1)
	}

	hosted, err := svc.Upload(ctx, cfg.Org.OrgID, filepath.Base(path), contentType, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image-upload: %v\n", err)
		os.Exit(1)
	}

	logger.Info("image uploaded",
		"id", hosted.ID, "size", hosted.Size,
		"width", hosted.Width, "height", hosted.Height)
	fmt.Printf("original:  %s\n", hosted.CDNURL)
	fmt.Printf("thumbnail: %s\n", hosted.CDNURLThumbnail)
	fmt.Printf("medium:    %s\n", hosted.CDNURLMedium)
	fmt.Printf("large:     %s\n", hosted.CDNURLLarge)
}
