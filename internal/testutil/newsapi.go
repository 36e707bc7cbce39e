package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vk/newsdag/internal/newsapi"
)

// FixtureAPIKey is the key NewsAPIServer accepts.
const FixtureAPIKey = "test-key"

// NewsAPIServer serves articles from /v2/everything, paginated the way
// NewsAPI does. Requests without FixtureAPIKey get a 401 apiKeyInvalid.
type NewsAPIServer struct {
	*httptest.Server
	Articles []newsapi.Article

	requests atomic.Int64
	failNext atomic.Int64
}

// NewNewsAPIServer starts a fixture server closed at the end of the test.
func NewNewsAPIServer(t *testing.T, articles []newsapi.Article) *NewsAPIServer {
	t.Helper()
	s := &NewsAPIServer{Articles: articles}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Requests returns how many requests were served.
func (s *NewsAPIServer) Requests() int {
	return int(s.requests.Load())
}

// FailNext makes the next n requests answer 500.
func (s *NewsAPIServer) FailNext(n int) {
	s.failNext.Store(int64(n))
}

func (s *NewsAPIServer) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")

	if s.failNext.Load() > 0 {
		s.failNext.Add(-1)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "code": "unexpectedError", "message": "try again later"})
		return
	}
	if r.URL.Path != "/v2/everything" {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "code": "notFound", "message": r.URL.Path})
		return
	}
	if r.Header.Get("X-Api-Key") != FixtureAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "code": "apiKeyInvalid", "message": "Your API key is invalid."})
		return
	}

	pageSize := atoiDefault(r.URL.Query().Get("pageSize"), 100)
	page := atoiDefault(r.URL.Query().Get("page"), 1)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(s.Articles) {
		start = len(s.Articles)
	}
	if end > len(s.Articles) {
		end = len(s.Articles)
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"totalResults": len(s.Articles),
		"articles":     s.Articles[start:end],
	})
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// SampleArticles returns ten articles from two sources by three authors, two
// of them without an author, plus one removed article that must be dropped.
func SampleArticles() []newsapi.Article {
	base := time.Date(2024, 12, 28, 8, 0, 0, 0, time.UTC)
	authors := []*string{str("Ada Lovelace"), str("Grace Hopper"), nil, str("Alan Turing"), str("Ada Lovelace"),
		str("Grace Hopper"), str(""), str("Ada Lovelace"), str("Alan Turing"), str("Ada Lovelace")}
	sources := []string{"The Verge", "Wired", "The Verge", "The Verge", "Wired",
		"The Verge", "Wired", "The Verge", "The Verge", "Wired"}

	var out []newsapi.Article
	for i := range authors {
		out = append(out, newsapi.Article{
			Source:      newsapi.Source{Name: sources[i]},
			Author:      authors[i],
			Title:       fmt.Sprintf("Apple story %d", i+1),
			URL:         fmt.Sprintf("https://example.com/apple/%d", i+1),
			URLToImage:  str(fmt.Sprintf("https://example.com/apple/%d.jpg", i+1)),
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			Content:     str(fmt.Sprintf("Body of story %d", i+1)),
		})
	}
	out = append(out, newsapi.Article{
		Source:      newsapi.Source{Name: "[Removed]"},
		Title:       "[Removed]",
		URL:         "https://removed.com",
		PublishedAt: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return out
}

func str(s string) *string { return &s }
