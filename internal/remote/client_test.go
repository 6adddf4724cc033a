package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errpkg "github.com/veranemoloko/bookvault/internal/errors"
)

type recordedRequest struct {
	path  string
	query url.Values
}

type apiStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (s *apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{path: r.URL.Path, query: r.URL.Query()})
	status, body := s.status, s.body
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *apiStub) last() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, stub *apiStub) *Client {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	return NewClient(server.URL, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestClient_OnlySuppliedParamsAreSent(t *testing.T) {
	stub := &apiStub{body: `{"ok":true}`}
	client := newTestClient(t, stub)
	ctx := context.Background()

	_, err := client.Search(ctx, "dragon", SearchOptions{})
	require.NoError(t, err)
	got := stub.last()
	assert.Equal(t, "/api/search", got.path)
	assert.Equal(t, url.Values{"key": {"dragon"}}, got.query)

	_, err = client.Search(ctx, "dragon", SearchOptions{Category: intPtr(8), Offset: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, url.Values{"key": {"dragon"}, "tab_type": {"8"}, "offset": {"0"}}, stub.last().query)

	_, err = client.Content(ctx, KindComic, ContentOptions{ItemID: strPtr("42"), ShowHTML: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, "/api/content", stub.last().path)
	assert.Equal(t, url.Values{"tab": {"漫画"}, "item_id": {"42"}, "show_html": {"1"}}, stub.last().query)

	_, err = client.Comments(ctx, "w1", CommentOptions{Count: intPtr(20)})
	require.NoError(t, err)
	assert.Equal(t, "/api/comment", stub.last().path)
	assert.Equal(t, url.Values{"book_id": {"w1"}, "count": {"20"}}, stub.last().query)
}

func TestClient_Endpoints(t *testing.T) {
	stub := &apiStub{body: `{"data":{}}`}
	client := newTestClient(t, stub)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		path  string
		query url.Values
	}{
		{"detail", func() error { _, err := client.Detail(ctx, "w1"); return err }, "/api/detail", url.Values{"book_id": {"w1"}}},
		{"book", func() error { _, err := client.Book(ctx, "w1"); return err }, "/api/book", url.Values{"book_id": {"w1"}}},
		{"directory", func() error { _, err := client.Directory(ctx, "w1"); return err }, "/api/directory", url.Values{"book_id": {"w1"}}},
		{"chapter", func() error { _, err := client.Chapter(ctx, "c1"); return err }, "/api/chapter", url.Values{"item_id": {"c1"}}},
		{"raw", func() error { _, err := client.RawFull(ctx, "c1"); return err }, "/api/raw_full", url.Values{"item_id": {"c1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())
			got := stub.last()
			assert.Equal(t, tt.path, got.path)
			assert.Equal(t, tt.query, got.query)
		})
	}
}

func TestClient_PassthroughReturnsBody(t *testing.T) {
	stub := &apiStub{body: `{"data":{"items":[1,2,3]}}`}
	client := newTestClient(t, stub)

	body, err := client.Detail(context.Background(), "w1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"items":[1,2,3]}}`, string(body))
}

func TestClient_NonSuccessStatusIsTransportError(t *testing.T) {
	stub := &apiStub{status: http.StatusBadGateway, body: `{"error":"upstream"}`}
	client := newTestClient(t, stub)

	_, err := client.Detail(context.Background(), "w1")
	require.Error(t, err)

	var terr *errpkg.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
	assert.Len(t, stub.requests, 1, "client must not retry")
}

func TestClient_UnparseableBodyIsTransportError(t *testing.T) {
	stub := &apiStub{body: `<html>maintenance</html>`}
	client := newTestClient(t, stub)

	_, err := client.Directory(context.Background(), "w1")
	require.Error(t, err)
	assert.True(t, errpkg.IsTransport(err))
}

func TestClient_ConnectionFailureIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	rootURL := server.URL
	server.Close()

	client := NewClient(rootURL)
	_, err := client.Detail(context.Background(), "w1")
	require.Error(t, err)
	assert.True(t, errpkg.IsTransport(err))
}

func TestClient_TypedHelpers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/detail", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"data":{"book_id":"w1","book_name":"Night Tide","author":"Lin","score":"8.9"}}}`)
	})
	mux.HandleFunc("/api/directory", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"lists":[{"item_id":"c1","title":"One"},{"item_id":"c2","title":"Two"}]}}`)
	})
	mux.HandleFunc("/api/content", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "小说", r.URL.Query().Get("tab"))
		_, _ = io.WriteString(w, `{"data":{"content":"text of `+r.URL.Query().Get("item_id")+`"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, WithRateLimit(1000))
	ctx := context.Background()

	work, err := client.FetchWork(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Night Tide", work.Title)
	assert.Equal(t, "Lin", work.Author)
	assert.JSONEq(t, `"8.9"`, string(work.Score))

	chapters, err := client.FetchCatalog(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "c2", chapters[1].ID)
	assert.Equal(t, 1, chapters[1].Position)

	text, err := client.FetchChapterText(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "text of c2", text)
}
