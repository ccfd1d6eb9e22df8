package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultRedditAPI   = "https://oauth.reddit.com"
	defaultRedditToken = "https://www.reddit.com/api/v1/access_token"
)

// Reddit listing JSON structures

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditLink struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}

type redditComment struct {
	ID           string            `json:"id"`
	Body         string            `json:"body"`
	Score        int               `json:"score"`
	UpvoteRatio  float64           `json:"upvote_ratio"`
	AllAwardings []json.RawMessage `json:"all_awardings"`
	TotalAwards  int               `json:"total_awards_received"`
	Depth        int               `json:"depth"`
	Replies      redditReplies     `json:"replies"`
}

// redditReplies is either an empty string or a nested listing.
type redditReplies struct {
	listing *redditListing
}

func (r *redditReplies) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == `""` || trimmed == "null" {
		r.listing = nil
		return nil
	}
	var l redditListing
	if err := json.Unmarshal(data, &l); err != nil {
		return err
	}
	r.listing = &l
	return nil
}

// RedditCredentials identifies the script app and account used for the
// password grant.
type RedditCredentials struct {
	UserAgent    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// RedditFetcher searches Reddit through its OAuth API.
type RedditFetcher struct {
	client  *http.Client
	baseURL string
}

// RedditOption customises a RedditFetcher.
type RedditOption func(*redditOptions)

type redditOptions struct {
	baseURL  string
	tokenURL string
	timeout  time.Duration
}

// WithRedditEndpoints overrides the API and token endpoints.
func WithRedditEndpoints(baseURL, tokenURL string) RedditOption {
	return func(o *redditOptions) {
		if baseURL != "" {
			o.baseURL = strings.TrimRight(baseURL, "/")
		}
		if tokenURL != "" {
			o.tokenURL = tokenURL
		}
	}
}

// WithRedditTimeout sets the per-request HTTP timeout.
func WithRedditTimeout(d time.Duration) RedditOption {
	return func(o *redditOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewRedditFetcher builds a fetcher. No network traffic happens until the
// first call; the access token is obtained lazily and reused until it expires.
func NewRedditFetcher(creds RedditCredentials, opts ...RedditOption) *RedditFetcher {
	o := redditOptions{
		baseURL:  defaultRedditAPI,
		tokenURL: defaultRedditToken,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := &http.Client{
		Timeout:   o.timeout,
		Transport: &userAgentTransport{userAgent: creds.UserAgent, base: http.DefaultTransport},
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  o.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	src := oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		conf:     conf,
		client:   base,
		username: creds.Username,
		password: creds.Password,
	})

	return &RedditFetcher{
		client: &http.Client{
			Timeout:   o.timeout,
			Transport: &oauth2.Transport{Source: src, Base: base.Transport},
		},
		baseURL: o.baseURL,
	}
}

// passwordTokenSource runs the resource-owner password grant each time a
// fresh token is needed. Reddit issues no refresh token for this grant.
type passwordTokenSource struct {
	conf     *oauth2.Config
	client   *http.Client
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.client)
	tok, err := s.conf.PasswordCredentialsToken(ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("reddit: token request failed: %w", err)
	}
	return tok, nil
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// Search returns link posts matching keyword in upstream ranking order.
func (f *RedditFetcher) Search(ctx context.Context, keyword string, opts SearchOptions) ([]Thread, error) {
	if !validKeyword(keyword) {
		return nil, ErrEmptyKeyword
	}

	query := url.Values{}
	query.Set("q", keyword)
	query.Set("sort", opts.Sort)
	query.Set("t", opts.Window)
	query.Set("limit", strconv.Itoa(opts.Limit))
	query.Set("type", "link")
	query.Set("raw_json", "1")

	var listing redditListing
	if err := f.getJSON(ctx, "/search", query, &listing); err != nil {
		return nil, fmt.Errorf("%w: reddit: search: %w", ErrUpstream, err)
	}

	threads := make([]Thread, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var link redditLink
		if err := json.Unmarshal(child.Data, &link); err != nil {
			return nil, fmt.Errorf("%w: reddit: search: failed to decode link: %w", ErrUpstream, err)
		}
		threads = append(threads, Thread{
			ID:          link.ID,
			Title:       strings.TrimSpace(link.Title),
			Body:        link.Selftext,
			Subreddit:   link.Subreddit,
			Permalink:   link.Permalink,
			Score:       link.Score,
			UpvoteRatio: link.UpvoteRatio,
		})
		if opts.Limit > 0 && len(threads) == opts.Limit {
			break
		}
	}

	return threads, nil
}

// ExpandReplies loads the reply tree of thread, bounded by opts.Depth levels
// and opts.Limit comments in total.
func (f *RedditFetcher) ExpandReplies(ctx context.Context, thread Thread, opts ReplyOptions) (Thread, error) {
	if thread.ID == "" {
		return thread, fmt.Errorf("reddit: thread has no id")
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.Limit))
	query.Set("depth", strconv.Itoa(opts.Depth))
	query.Set("raw_json", "1")

	var listings []redditListing
	if err := f.getJSON(ctx, "/comments/"+url.PathEscape(thread.ID), query, &listings); err != nil {
		return thread, fmt.Errorf("%w: reddit: comments for %s: %w", ErrUpstream, thread.ID, err)
	}
	if len(listings) < 2 {
		return thread, fmt.Errorf("%w: reddit: comments for %s: expected 2 listings, got %d", ErrUpstream, thread.ID, len(listings))
	}

	budget := opts.Limit
	replies, err := convertComments(listings[1].Data.Children, 0, opts.Depth, &budget)
	if err != nil {
		return thread, fmt.Errorf("%w: reddit: comments for %s: %w", ErrUpstream, thread.ID, err)
	}
	thread.Replies = replies
	return thread, nil
}

// convertComments maps raw listing children to Comments in pre-order,
// skipping "more" placeholders and anything at or below maxDepth.
func convertComments(children []redditThing, depth, maxDepth int, budget *int) ([]Comment, error) {
	if depth >= maxDepth {
		return nil, nil
	}
	var out []Comment
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}
		if *budget <= 0 {
			break
		}
		var rc redditComment
		if err := json.Unmarshal(child.Data, &rc); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		*budget--

		awards := rc.TotalAwards
		if n := len(rc.AllAwardings); n > awards {
			awards = n
		}
		c := Comment{
			ID:          rc.ID,
			Body:        rc.Body,
			Score:       rc.Score,
			UpvoteRatio: rc.UpvoteRatio,
			Awards:      awards,
			Depth:       depth,
		}
		if rc.Replies.listing != nil {
			nested, err := convertComments(rc.Replies.listing.Data.Children, depth+1, maxDepth, budget)
			if err != nil {
				return nil, err
			}
			c.Replies = nested
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *RedditFetcher) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	reqURL := fmt.Sprintf("%s%s?%s", f.baseURL, path, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}
