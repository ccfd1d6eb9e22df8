package publisher

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailPublisher sends the digest as an HTML email via SMTP.
type EmailPublisher struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	send sendMailFunc
	now  func() time.Time
}

func NewEmailPublisher(host string, port int, username, password, from string, to []string) *EmailPublisher {
	return &EmailPublisher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

func (p *EmailPublisher) Publish(ctx context.Context, keyword string, digest *summarizer.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Vibe check: %s - %s", keyword, p.now().Format("2006-01-02"))
	body := buildHTMLBody(keyword, p.now(), digest)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		p.from,
		strings.Join(p.to, ","),
		subject,
		body,
	)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	if err := p.send(addr, auth, p.from, p.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}

	return nil
}

func buildHTMLBody(keyword string, date time.Time, digest *summarizer.Digest) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; }
h1 { color: #1a1a2e; border-bottom: 2px solid #e94560; padding-bottom: 10px; }
h2 { color: #16213e; }
.overview { background: #f0f0f0; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
.headline { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.points li { margin-bottom: 10px; }
blockquote { color: #666; border-left: 3px solid #ddd; margin: 5px 0 0 0; padding-left: 10px; }
</style></head><body>`)

	sb.WriteString(fmt.Sprintf("<h1>Vibe check: %s</h1>", html.EscapeString(keyword)))
	sb.WriteString(fmt.Sprintf("<p><em>%s</em></p>", date.Format("January 2, 2006")))

	sb.WriteString(fmt.Sprintf(`<div class="overview"><h2>Overview</h2><p>%s</p></div>`, html.EscapeString(digest.OverallSummary)))

	sb.WriteString(`<div class="headline"><ul>`)
	sb.WriteString(fmt.Sprintf("<li><strong>Top praise:</strong> %s</li>", html.EscapeString(orDash(digest.TopPraise))))
	sb.WriteString(fmt.Sprintf("<li><strong>Top pain:</strong> %s</li>", html.EscapeString(orDash(digest.TopPain))))
	sb.WriteString(fmt.Sprintf("<li><strong>Intensity:</strong> %s</li>", html.EscapeString(orDash(digest.TopIntensity))))
	if digest.TopRequestedFeature != "" {
		sb.WriteString(fmt.Sprintf("<li><strong>Top request:</strong> %s</li>", html.EscapeString(digest.TopRequestedFeature)))
	}
	sb.WriteString("</ul></div>")

	writePointList(&sb, "Praise", digest.PraisePoints)
	writePointList(&sb, "Pain points", digest.PainPoints)
	writePointList(&sb, "Requested features", digest.RequestedFeatures)

	sb.WriteString("</body></html>")
	return sb.String()
}

func writePointList(sb *strings.Builder, title string, points []summarizer.Point) {
	if len(points) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf(`<h2>%s</h2><ul class="points">`, title))
	for _, p := range points {
		sb.WriteString("<li>")
		sb.WriteString(html.EscapeString(p.Text))
		if p.Source != "" {
			sb.WriteString(fmt.Sprintf("<blockquote>%s</blockquote>", html.EscapeString(p.Source)))
		}
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
}
