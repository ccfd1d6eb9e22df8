// Package extract flattens reply trees and keeps the comments worth sending
// to the model.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/vibecheck/internal/fetcher"
)

// DefaultCap is the maximum number of comment texts handed to the prompt.
const DefaultCap = 50

// Mode selects which predicate decides whether a comment is kept.
type Mode string

const (
	// ModeStrict keeps non-empty comments with meaningful engagement.
	ModeStrict Mode = "strict"
	// ModeSimple keeps every non-empty comment.
	ModeSimple Mode = "simple"
)

// ModeFromString parses a configured mode name.
func ModeFromString(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeSimple:
		return ModeSimple, nil
	default:
		return "", fmt.Errorf("extract: unknown mode %q (supported: strict, simple)", s)
	}
}

// Thresholds are the engagement cut-offs of the strict predicate. A comment
// passes when it beats any one of them.
type Thresholds struct {
	MinScore       int
	MinUpvoteRatio float64
}

// DefaultThresholds returns score > 10 or upvote ratio > 0.8.
func DefaultThresholds() Thresholds {
	return Thresholds{MinScore: 10, MinUpvoteRatio: 0.8}
}

// Predicate reports whether a comment belongs in the filtered set.
type Predicate func(fetcher.Comment) bool

// NonEmpty keeps any comment with a body.
func NonEmpty(c fetcher.Comment) bool {
	return hasText(c)
}

// Relevant builds the strict predicate: a body plus score, ratio or awards
// above the thresholds.
func Relevant(th Thresholds) Predicate {
	return func(c fetcher.Comment) bool {
		if !hasText(c) {
			return false
		}
		return c.Score > th.MinScore || c.UpvoteRatio > th.MinUpvoteRatio || c.Awards > 0
	}
}

// PredicateFor returns the predicate used by mode.
func PredicateFor(mode Mode, th Thresholds) Predicate {
	if mode == ModeStrict {
		return Relevant(th)
	}
	return NonEmpty
}

func hasText(c fetcher.Comment) bool {
	return strings.TrimSpace(c.Body) != ""
}

// Flatten walks the reply tree of thread in pre-order. Comments at or below
// maxDepth levels are not visited; maxDepth <= 0 means unbounded.
func Flatten(thread fetcher.Thread, maxDepth int) []fetcher.Comment {
	var out []fetcher.Comment
	var walk func(cs []fetcher.Comment, depth int)
	walk = func(cs []fetcher.Comment, depth int) {
		if maxDepth > 0 && depth >= maxDepth {
			return
		}
		for _, c := range cs {
			leaf := c
			leaf.Replies = nil
			out = append(out, leaf)
			walk(c.Replies, depth+1)
		}
	}
	walk(thread.Replies, 0)
	return out
}

// Filter returns the comments satisfying pred in their original order.
func Filter(comments []fetcher.Comment, pred Predicate) []fetcher.Comment {
	kept := make([]fetcher.Comment, 0, len(comments))
	for _, c := range comments {
		if pred(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

// CommentSet is the ordered, size-capped list of comment texts sent to the
// model. Every element is non-empty and passed the active predicate.
type CommentSet struct {
	Texts         []string
	Threads       int
	FailedThreads int
	Dropped       int
}

// Len returns the number of collected texts.
func (s CommentSet) Len() int { return len(s.Texts) }

// ExpandFunc loads the reply tree for one thread.
type ExpandFunc func(ctx context.Context, thread fetcher.Thread) (fetcher.Thread, error)

// Collector folds threads into a CommentSet.
type Collector struct {
	Predicate Predicate
	MaxDepth  int
	Cap       int
	Logger    logrus.FieldLogger

	// OnExpandFailure, when set, is called once per thread whose replies
	// failed to load.
	OnExpandFailure func(thread fetcher.Thread, err error)
}

// NewCollector returns a collector for mode with the default cap.
func NewCollector(mode Mode, th Thresholds, maxDepth int, logger logrus.FieldLogger) *Collector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		Predicate: PredicateFor(mode, th),
		MaxDepth:  maxDepth,
		Cap:       DefaultCap,
		Logger:    logger,
	}
}

// Collect expands threads one at a time and accumulates the comments that
// pass the predicate. A thread whose expansion fails contributes nothing and
// does not stop the fold. Only cancellation of ctx is returned as an error.
func (c *Collector) Collect(ctx context.Context, threads []fetcher.Thread, expand ExpandFunc) (CommentSet, error) {
	set := CommentSet{Threads: len(threads)}
	limit := c.Cap
	if limit <= 0 {
		limit = DefaultCap
	}

	for _, thread := range threads {
		if err := ctx.Err(); err != nil {
			return set, fmt.Errorf("extract: collection interrupted: %w", err)
		}

		full, err := expand(ctx, thread)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return set, fmt.Errorf("extract: collection interrupted: %w", ctxErr)
			}
			c.Logger.WithFields(logrus.Fields{
				"thread_id": thread.ID,
				"subreddit": thread.Subreddit,
				"permalink": thread.Permalink,
				"kind":      "PerThreadExpansionFailure",
			}).WithError(err).Warn("Failed to load comments for thread, skipping")
			set.FailedThreads++
			if c.OnExpandFailure != nil {
				c.OnExpandFailure(thread, err)
			}
			continue
		}

		all := Flatten(full, c.MaxDepth)
		kept := Filter(all, c.Predicate)
		c.Logger.WithFields(logrus.Fields{
			"thread_id":    thread.ID,
			"subreddit":    thread.Subreddit,
			"title":        thread.Title,
			"score":        thread.Score,
			"upvote_ratio": thread.UpvoteRatio,
			"comments":     len(all),
			"kept":         len(kept),
		}).Debug("Expanded thread")

		for _, comment := range kept {
			if len(set.Texts) >= limit {
				c.Logger.WithFields(logrus.Fields{
					"comment_id": comment.ID,
					"depth":      comment.Depth,
				}).Debug("Comment over cap, dropped")
				set.Dropped++
				continue
			}
			set.Texts = append(set.Texts, comment.Body)
		}
	}

	return set, nil
}
