package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

const (
	colorOverview = 0x5865F2 // Discord blurple
	colorPraise   = 0x57F287
	colorPain     = 0xED4245
	colorFeature  = 0xFEE75C
)

// DiscordPublisher posts digests to a Discord channel via webhook.
type DiscordPublisher struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordPublisher creates a new DiscordPublisher.
func NewDiscordPublisher(webhookURL string) *DiscordPublisher {
	return &DiscordPublisher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Publish sends the digest to Discord as rich embeds. Each batch is sent
// once; the first failure aborts the rest.
func (d *DiscordPublisher) Publish(ctx context.Context, keyword string, digest *summarizer.Digest) error {
	batches := batchEmbeds(d.buildEmbeds(keyword, digest))

	for i, batch := range batches {
		if err := d.sendWebhook(ctx, batch); err != nil {
			return fmt.Errorf("discord: failed to send batch %d: %w", i+1, err)
		}

		// Delay between batches to avoid rate limits.
		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
	return nil
}

// buildEmbeds creates the overview embed and one embed per non-empty list.
func (d *DiscordPublisher) buildEmbeds(keyword string, digest *summarizer.Digest) []discordEmbed {
	now := d.now()

	fields := []discordEmbedField{
		{Name: "Top praise", Value: truncate(orDash(digest.TopPraise), 1024), Inline: true},
		{Name: "Top pain", Value: truncate(orDash(digest.TopPain), 1024), Inline: true},
		{Name: "Intensity", Value: truncate(orDash(digest.TopIntensity), 1024), Inline: true},
	}
	if digest.TopRequestedFeature != "" {
		fields = append(fields, discordEmbedField{Name: "Top request", Value: truncate(digest.TopRequestedFeature, 1024)})
	}

	embeds := []discordEmbed{{
		Title:       truncate(fmt.Sprintf("Vibe check: %s", keyword), 256),
		Description: truncate(digest.OverallSummary, 4096),
		Color:       colorOverview,
		Fields:      fields,
		Footer:      &discordEmbedFooter{Text: now.Format("2006-01-02")},
		Timestamp:   now.Format(time.RFC3339),
	}}

	lists := []struct {
		title  string
		color  int
		points []summarizer.Point
	}{
		{"Praise", colorPraise, digest.PraisePoints},
		{"Pain points", colorPain, digest.PainPoints},
		{"Requested features", colorFeature, digest.RequestedFeatures},
	}
	for _, l := range lists {
		if len(l.points) == 0 {
			continue
		}
		embeds = append(embeds, discordEmbed{
			Title:       l.title,
			Description: truncate(formatPoints(l.points), 4096),
			Color:       l.color,
		})
	}

	return embeds
}

// batchEmbeds splits embeds into batches respecting Discord limits:
// max 10 embeds per message, max 6000 total characters per message.
func batchEmbeds(embeds []discordEmbed) [][]discordEmbed {
	var batches [][]discordEmbed
	var current []discordEmbed
	currentChars := 0

	for _, e := range embeds {
		ec := embedCharCount(e)

		if len(current) > 0 && (len(current) >= 10 || currentChars+ec > 6000) {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}

		current = append(current, e)
		currentChars += ec
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

// sendWebhook posts a batch of embeds to the Discord webhook.
func (d *DiscordPublisher) sendWebhook(ctx context.Context, embeds []discordEmbed) error {
	body, err := json.Marshal(discordWebhookPayload{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// truncate shortens s to max bytes, preferring a sentence boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := s[:max-1]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > max/2 {
		return cut[:idx+1]
	}
	return cut + "…"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// formatPoints renders points as a bulleted list with their quotes.
func formatPoints(points []summarizer.Point) string {
	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(p.Text)
		if p.Source != "" {
			b.WriteString("\n> ")
			b.WriteString(p.Source)
		}
	}
	return b.String()
}

// embedCharCount returns the total character count of an embed for batching purposes.
func embedCharCount(e discordEmbed) int {
	n := len(e.Title) + len(e.Description)
	for _, f := range e.Fields {
		n += len(f.Name) + len(f.Value)
	}
	if e.Footer != nil {
		n += len(e.Footer.Text)
	}
	return n
}
