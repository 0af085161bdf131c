package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/threadsight/threadsight/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type listingChild struct {
	Data map[string]any `json:"data"`
}

func listingPage(after string, children ...listingChild) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"after":    after,
			"children": children,
		},
	}
}

func child(id string, created time.Time, score int) listingChild {
	return listingChild{Data: map[string]any{
		"id":              id,
		"title":           "thread " + id,
		"selftext":        "body",
		"author":          "someone",
		"score":           score,
		"num_comments":    3,
		"created_utc":     float64(created.Unix()),
		"link_flair_text": "Discussion",
		"permalink":       "/r/test/comments/" + id,
	}}
}

func serveListing(t *testing.T, pages map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after := r.URL.Query().Get("after")
		page, ok := pages[after]
		if !ok {
			t.Errorf("unexpected after cursor %q", after)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(page)
	}))
}

func TestFetchWindowAndPagination(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	window := models.Window{Start: now.Add(-48 * time.Hour), End: now}

	srv := serveListing(t, map[string]any{
		"": listingPage("cursor1",
			child("new1", now.Add(-1*time.Hour), 10),
			child("new2", now.Add(-12*time.Hour), 20),
		),
		"cursor1": listingPage("cursor2",
			child("new3", now.Add(-36*time.Hour), 5),
			// Older than the window start: pagination stops here.
			child("old1", now.Add(-80*time.Hour), 50),
		),
	})
	defer srv.Close()

	f := NewRedditFetcher(testLogger(), 0, 0)
	f.baseURL = srv.URL

	posts, err := f.Fetch(context.Background(), "test", window, 100)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}
	for _, p := range posts {
		if p.Source != "test" || p.CreatedAt.Before(window.Start) {
			t.Errorf("unexpected post: %+v", p)
		}
	}
}

func TestFetchRespectsMaxPosts(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	window := models.Window{Start: now.Add(-48 * time.Hour), End: now}

	srv := serveListing(t, map[string]any{
		"": listingPage("more",
			child("a", now.Add(-1*time.Hour), 10),
			child("b", now.Add(-2*time.Hour), 10),
			child("c", now.Add(-3*time.Hour), 10),
		),
	})
	defer srv.Close()

	f := NewRedditFetcher(testLogger(), 0, 0)
	f.baseURL = srv.URL

	posts, err := f.Fetch(context.Background(), "test", window, 2)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("got %d posts, want cap of 2", len(posts))
	}
}

func TestFetchSkipsLowScore(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	window := models.Window{Start: now.Add(-48 * time.Hour), End: now}

	srv := serveListing(t, map[string]any{
		"": listingPage("",
			child("hot", now.Add(-1*time.Hour), 100),
			child("cold", now.Add(-2*time.Hour), 1),
		),
	})
	defer srv.Close()

	f := NewRedditFetcher(testLogger(), 10, 0)
	f.baseURL = srv.URL

	posts, err := f.Fetch(context.Background(), "test", window, 100)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "hot" {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func commentThread(bodies ...string) []map[string]any {
	children := make([]map[string]any, 0, len(bodies)+1)
	// The "more" stub mirrors reddit's continuation marker and must be
	// skipped.
	children = append(children, map[string]any{"kind": "more", "data": map[string]any{}})
	for i, body := range bodies {
		children = append(children, map[string]any{
			"kind": "t1",
			"data": map[string]any{
				"id":          fmt.Sprintf("c%d", i),
				"author":      "commenter",
				"body":        body,
				"score":       i + 1,
				"created_utc": float64(1755691200),
			},
		})
	}
	return []map[string]any{
		{"data": map[string]any{"children": []map[string]any{}}},
		{"data": map[string]any{"children": children}},
	}
}

func TestFetchAttachesTopComments(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	window := models.Window{Start: now.Add(-48 * time.Hour), End: now}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/test/new.json":
			json.NewEncoder(w).Encode(listingPage("",
				child("p1", now.Add(-1*time.Hour), 10),
				child("p2", now.Add(-2*time.Hour), 10),
			))
		case "/r/test/comments/p1.json":
			json.NewEncoder(w).Encode(commentThread("first", "second", "third"))
		case "/r/test/comments/p2.json":
			// Comment lookup failures degrade the post, not the fetch.
			w.WriteHeader(http.StatusInternalServerError)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewRedditFetcher(testLogger(), 0, 2)
	f.baseURL = srv.URL

	posts, err := f.Fetch(context.Background(), "test", window, 100)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}

	if len(posts[0].Comments) != 2 {
		t.Fatalf("got %d comments, want cap of 2", len(posts[0].Comments))
	}
	if posts[0].Comments[0].Body != "first" || posts[0].Comments[1].Body != "second" {
		t.Errorf("unexpected comments: %+v", posts[0].Comments)
	}
	if len(posts[1].Comments) != 0 {
		t.Errorf("expected no comments after lookup failure, got %+v", posts[1].Comments)
	}
}

func TestFetchSkipsCommentsWhenDisabled(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	window := models.Window{Start: now.Add(-48 * time.Hour), End: now}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/test/new.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(listingPage("", child("p1", now.Add(-1*time.Hour), 10)))
	}))
	defer srv.Close()

	f := NewRedditFetcher(testLogger(), 0, 0)
	f.baseURL = srv.URL

	posts, err := f.Fetch(context.Background(), "test", window, 100)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Comments != nil {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func TestFetchErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"not found", http.StatusNotFound, ErrSourceUnavailable},
		{"forbidden", http.StatusForbidden, ErrSourceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			f := NewRedditFetcher(testLogger(), 0, 0)
			f.baseURL = srv.URL

			_, err := f.Fetch(context.Background(), "test", models.Window{End: time.Now()}, 10)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}

			var fe *FetchError
			if !errors.As(err, &fe) || fe.Source != "test" {
				t.Errorf("expected FetchError carrying the source, got %v", err)
			}
		})
	}
}

func TestFetchErrorString(t *testing.T) {
	err := &FetchError{Source: "test", Err: fmt.Errorf("boom")}
	if err.Error() == "" {
		t.Error("expected non-empty error string")
	}
}
