package fetcher

import (
	"context"
	"errors"
	"strings"
)

// Thread is a top-level discussion post returned by keyword search, together
// with whatever part of its reply tree has been loaded.
type Thread struct {
	ID          string
	Title       string
	Body        string
	Subreddit   string
	Permalink   string
	Score       int
	UpvoteRatio float64
	Replies     []Comment
}

// Comment is a single reply with its engagement metrics.
type Comment struct {
	ID          string
	Body        string
	Score       int
	UpvoteRatio float64
	Awards      int
	Depth       int
	Replies     []Comment
}

// SearchOptions constrains a keyword search.
type SearchOptions struct {
	Sort   string
	Window string
	Limit  int
}

// ReplyOptions bounds reply expansion for a single thread.
type ReplyOptions struct {
	Depth int
	Limit int
}

// DefaultReplyOptions expands one level of replies, five per thread.
func DefaultReplyOptions() ReplyOptions {
	return ReplyOptions{Depth: 1, Limit: 5}
}

// Fetcher searches a discussion platform and loads reply trees.
type Fetcher interface {
	Search(ctx context.Context, keyword string, opts SearchOptions) ([]Thread, error)
	ExpandReplies(ctx context.Context, thread Thread, opts ReplyOptions) (Thread, error)
}

var (
	// ErrEmptyKeyword is returned when a search is attempted without a keyword.
	ErrEmptyKeyword = errors.New("fetcher: keyword is required")

	// ErrUpstream wraps every failure talking to the comment source.
	ErrUpstream = errors.New("fetcher: upstream source failure")
)

func validKeyword(keyword string) bool {
	return strings.TrimSpace(keyword) != ""
}
