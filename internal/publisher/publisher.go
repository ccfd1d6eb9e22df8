package publisher

import (
	"context"

	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

// Publisher delivers a keyword's digest to some output destination.
type Publisher interface {
	Publish(ctx context.Context, keyword string, digest *summarizer.Digest) error
}
