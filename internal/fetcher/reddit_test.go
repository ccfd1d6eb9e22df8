package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSearchListing = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {"id": "abc", "name": "t3_abc", "title": "  Best noise-cancelling headphones?  ", "selftext": "Looking for advice", "subreddit": "headphones", "permalink": "/r/headphones/comments/abc/", "score": 120, "upvote_ratio": 0.97}},
      {"kind": "t3", "data": {"id": "def", "name": "t3_def", "title": "ANC comparison", "selftext": "", "subreddit": "audiophile", "permalink": "/r/audiophile/comments/def/", "score": 40, "upvote_ratio": 0.88}}
    ]
  }
}`

const sampleCommentsListing = `[
  {"kind": "Listing", "data": {"children": [{"kind": "t3", "data": {"id": "abc"}}]}},
  {"kind": "Listing", "data": {"children": [
    {"kind": "t1", "data": {"id": "c1", "body": "The ANC on these is unreal.", "score": 15, "depth": 0, "all_awardings": [{"id": "gold"}], "replies": {"kind": "Listing", "data": {"children": [
      {"kind": "t1", "data": {"id": "c1a", "body": "Agreed", "score": 4, "depth": 1, "replies": ""}}
    ]}}}},
    {"kind": "t1", "data": {"id": "c2", "body": "Battery died after a month.", "score": 3, "depth": 0, "total_awards_received": 0, "replies": ""}},
    {"kind": "more", "data": {"count": 12, "children": ["x", "y"]}}
  ]}}
]`

func newTestReddit(t *testing.T, handler http.HandlerFunc) (*RedditFetcher, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "token request should use basic auth")
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "bot-user", r.PostForm.Get("username"))
		assert.Equal(t, "vibecheck-test/1.0", r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "tok-123", "token_type": "bearer", "expires_in": 3600}`))
	})
	mux.HandleFunc("/", handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	f := NewRedditFetcher(RedditCredentials{
		UserAgent:    "vibecheck-test/1.0",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Username:     "bot-user",
		Password:     "bot-pass",
	}, WithRedditEndpoints(ts.URL, ts.URL+"/api/v1/access_token"))
	return f, &tokenCalls
}

func TestSearchParsesListing(t *testing.T) {
	var receivedQuery string
	f, tokenCalls := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "vibecheck-test/1.0", r.UserAgent())
		receivedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleSearchListing))
	})

	threads, err := f.Search(context.Background(), "noise-cancelling headphones", SearchOptions{Sort: "relevance", Window: "week", Limit: 10})
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, "abc", threads[0].ID)
	assert.Equal(t, "Best noise-cancelling headphones?", threads[0].Title)
	assert.Equal(t, "headphones", threads[0].Subreddit)
	assert.Equal(t, 120, threads[0].Score)
	assert.Equal(t, "def", threads[1].ID)

	for _, want := range []string{"q=noise-cancelling+headphones", "sort=relevance", "t=week", "limit=10", "type=link", "raw_json=1"} {
		assert.Contains(t, receivedQuery, want)
	}

	_, err = f.Search(context.Background(), "second", SearchOptions{Sort: "relevance", Window: "week", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls), "token should be reused until it expires")
}

func TestSearchRespectsLimit(t *testing.T) {
	f, _ := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleSearchListing))
	})

	threads, err := f.Search(context.Background(), "anc", SearchOptions{Sort: "relevance", Window: "week", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestSearchEmptyKeyword(t *testing.T) {
	f, tokenCalls := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty keyword")
	})

	_, err := f.Search(context.Background(), "   ", SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, ErrEmptyKeyword)
	assert.Equal(t, int32(0), atomic.LoadInt32(tokenCalls))
}

func TestSearchUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"kind": "Listing", "data": `))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestReddit(t, tt.handler)
			threads, err := f.Search(context.Background(), "anc", SearchOptions{Limit: 5})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUpstream), "expected ErrUpstream, got %v", err)
			assert.Nil(t, threads)
		})
	}
}

func TestSearchTokenFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid_grant"}`))
			return
		}
		t.Error("search should not be attempted without a token")
	}))
	defer ts.Close()

	f := NewRedditFetcher(RedditCredentials{ClientID: "id", ClientSecret: "bad"},
		WithRedditEndpoints(ts.URL, ts.URL+"/api/v1/access_token"))

	_, err := f.Search(context.Background(), "anc", SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestExpandRepliesBuildsTree(t *testing.T) {
	var receivedPath, receivedQuery string
	f, _ := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		receivedQuery = r.URL.RawQuery
		w.Write([]byte(sampleCommentsListing))
	})

	thread, err := f.ExpandReplies(context.Background(), Thread{ID: "abc"}, ReplyOptions{Depth: 2, Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, "/comments/abc", receivedPath)
	assert.Contains(t, receivedQuery, "limit=5")
	assert.Contains(t, receivedQuery, "depth=2")

	require.Len(t, thread.Replies, 2, "the more placeholder must be dropped")
	first := thread.Replies[0]
	assert.Equal(t, "The ANC on these is unreal.", first.Body)
	assert.Equal(t, 15, first.Score)
	assert.Equal(t, 1, first.Awards)
	require.Len(t, first.Replies, 1)
	assert.Equal(t, "Agreed", first.Replies[0].Body)
	assert.Equal(t, 1, first.Replies[0].Depth)

	assert.Equal(t, "Battery died after a month.", thread.Replies[1].Body)
	assert.Empty(t, thread.Replies[1].Replies)
}

func TestExpandRepliesBounds(t *testing.T) {
	f, _ := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCommentsListing))
	})

	t.Run("depth one keeps top level only", func(t *testing.T) {
		thread, err := f.ExpandReplies(context.Background(), Thread{ID: "abc"}, ReplyOptions{Depth: 1, Limit: 5})
		require.NoError(t, err)
		require.Len(t, thread.Replies, 2)
		assert.Empty(t, thread.Replies[0].Replies)
	})

	t.Run("limit caps total comments", func(t *testing.T) {
		thread, err := f.ExpandReplies(context.Background(), Thread{ID: "abc"}, ReplyOptions{Depth: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, thread.Replies, 1)
		assert.Len(t, thread.Replies[0].Replies, 1)
	})
}

func TestExpandRepliesFailure(t *testing.T) {
	f, _ := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	thread, err := f.ExpandReplies(context.Background(), Thread{ID: "abc", Title: "kept"}, DefaultReplyOptions())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "kept", thread.Title)
	assert.Empty(t, thread.Replies)
}
