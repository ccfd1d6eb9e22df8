package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

// StdoutPublisher prints the digest as a plain-text report.
type StdoutPublisher struct {
	out io.Writer
}

func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{out: os.Stdout}
}

// NewWriterPublisher prints reports to w instead of stdout.
func NewWriterPublisher(w io.Writer) *StdoutPublisher {
	return &StdoutPublisher{out: w}
}

func (p *StdoutPublisher) Publish(_ context.Context, keyword string, digest *summarizer.Digest) error {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 72) + "\n")
	fmt.Fprintf(&b, "Vibe check: %s\n", keyword)
	b.WriteString(strings.Repeat("=", 72) + "\n\n")

	b.WriteString("Overview:\n")
	b.WriteString(digest.OverallSummary + "\n\n")

	fmt.Fprintf(&b, "Top praise:    %s\n", digest.TopPraise)
	fmt.Fprintf(&b, "Top pain:      %s\n", digest.TopPain)
	fmt.Fprintf(&b, "Intensity:     %s\n", digest.TopIntensity)
	if digest.TopRequestedFeature != "" {
		fmt.Fprintf(&b, "Top request:   %s\n", digest.TopRequestedFeature)
	}
	b.WriteByte('\n')

	writePoints(&b, "Praise", digest.PraisePoints)
	writePoints(&b, "Pain points", digest.PainPoints)
	if len(digest.RequestedFeatures) > 0 {
		writePoints(&b, "Requested features", digest.RequestedFeatures)
	}

	b.WriteString(strings.Repeat("=", 72) + "\n")

	_, err := io.WriteString(p.out, b.String())
	return err
}

func writePoints(b *strings.Builder, heading string, points []summarizer.Point) {
	b.WriteString(strings.Repeat("-", 72) + "\n")
	b.WriteString(heading + ":\n")
	if len(points) == 0 {
		b.WriteString("   (none)\n\n")
		return
	}
	for i, p := range points {
		fmt.Fprintf(b, "%d. %s\n", i+1, p.Text)
		if p.Source != "" {
			fmt.Fprintf(b, "   \"%s\"\n", p.Source)
		}
	}
	b.WriteByte('\n')
}
