package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	errpkg "github.com/veranemoloko/bookvault/internal/errors"
	"github.com/veranemoloko/bookvault/internal/remote"
	"github.com/veranemoloko/bookvault/internal/validation"
)

// RemoteClientI defines the remote API calls that are proxied as-is.
type RemoteClientI interface {
	Search(ctx context.Context, key string, opts remote.SearchOptions) (json.RawMessage, error)
	Detail(ctx context.Context, workID string) (json.RawMessage, error)
	Book(ctx context.Context, workID string) (json.RawMessage, error)
	Directory(ctx context.Context, workID string) (json.RawMessage, error)
	Content(ctx context.Context, kind remote.ContentKind, opts remote.ContentOptions) (json.RawMessage, error)
	Chapter(ctx context.Context, itemID string) (json.RawMessage, error)
	RawFull(ctx context.Context, itemID string) (json.RawMessage, error)
	Comments(ctx context.Context, workID string, opts remote.CommentOptions) (json.RawMessage, error)
}

type searchQuery struct {
	Key      string `validate:"required,max=256"`
	Category *int   `validate:"omitempty,min=0"`
	Offset   *int   `validate:"omitempty,min=0"`
}

type commentQuery struct {
	Count  *int `validate:"omitempty,min=1,max=100"`
	Offset *int `validate:"omitempty,min=0"`
}

type contentQuery struct {
	Tab      string `validate:"required,oneof=小说 听书 短剧 漫画 批量 下载"`
	ItemID   *string
	ItemIDs  *string
	BookID   *string
	ShowHTML *int `validate:"omitempty,oneof=0 1"`
	ToneID   *string
	Async    *int `validate:"omitempty,oneof=0 1"`
}

// RemoteHandler proxies read-only calls to the remote content API.
type RemoteHandler struct {
	client    RemoteClientI
	validator *validator.Validate
	logger    *slog.Logger
}

// NewRemoteHandler creates a new RemoteHandler.
func NewRemoteHandler(client RemoteClientI, logger *slog.Logger) *RemoteHandler {
	return &RemoteHandler{
		client:    client,
		validator: validation.Validator(),
		logger:    logger,
	}
}

// Search handles GET /remote/search.
func (h *RemoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		query searchQuery
		err   error
	)
	query.Key = q.Get("key")
	if query.Category, err = intParam(q, "category"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Offset, err = intParam(q, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := h.client.Search(r.Context(), query.Key, remote.SearchOptions{
		Category: query.Category,
		Offset:   query.Offset,
	})
	h.respond(w, body, err)
}

// Detail handles GET /remote/detail/{workID}.
func (h *RemoteHandler) Detail(w http.ResponseWriter, r *http.Request) {
	body, err := h.client.Detail(r.Context(), chi.URLParam(r, "workID"))
	h.respond(w, body, err)
}

// Book handles GET /remote/book/{workID}.
func (h *RemoteHandler) Book(w http.ResponseWriter, r *http.Request) {
	body, err := h.client.Book(r.Context(), chi.URLParam(r, "workID"))
	h.respond(w, body, err)
}

// Directory handles GET /remote/directory/{workID}.
func (h *RemoteHandler) Directory(w http.ResponseWriter, r *http.Request) {
	body, err := h.client.Directory(r.Context(), chi.URLParam(r, "workID"))
	h.respond(w, body, err)
}

// Content handles GET /remote/content.
func (h *RemoteHandler) Content(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		query contentQuery
		err   error
	)
	query.Tab = q.Get("tab")
	if query.Tab == "" {
		query.Tab = string(remote.KindNovel)
	}
	query.ItemID = stringParam(q, "item_id")
	query.ItemIDs = stringParam(q, "item_ids")
	query.BookID = stringParam(q, "book_id")
	query.ToneID = stringParam(q, "tone_id")
	if query.ShowHTML, err = intParam(q, "show_html"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Async, err = intParam(q, "async"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := h.client.Content(r.Context(), remote.ContentKind(query.Tab), remote.ContentOptions{
		ItemID:   query.ItemID,
		ItemIDs:  query.ItemIDs,
		BookID:   query.BookID,
		ShowHTML: query.ShowHTML,
		ToneID:   query.ToneID,
		Async:    query.Async,
	})
	h.respond(w, body, err)
}

// Chapter handles GET /remote/chapter/{itemID}.
func (h *RemoteHandler) Chapter(w http.ResponseWriter, r *http.Request) {
	body, err := h.client.Chapter(r.Context(), chi.URLParam(r, "itemID"))
	h.respond(w, body, err)
}

// RawFull handles GET /remote/raw/{itemID}.
func (h *RemoteHandler) RawFull(w http.ResponseWriter, r *http.Request) {
	body, err := h.client.RawFull(r.Context(), chi.URLParam(r, "itemID"))
	h.respond(w, body, err)
}

// Comments handles GET /remote/comments/{workID}.
func (h *RemoteHandler) Comments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		query commentQuery
		err   error
	)
	if query.Count, err = intParam(q, "count"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Offset, err = intParam(q, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := h.client.Comments(r.Context(), chi.URLParam(r, "workID"), remote.CommentOptions{
		Count:  query.Count,
		Offset: query.Offset,
	})
	h.respond(w, body, err)
}

func (h *RemoteHandler) respond(w http.ResponseWriter, body json.RawMessage, err error) {
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeRawJSON(w, body)
}

func stringParam(q url.Values, name string) *string {
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name)
	return &v
}

func intParam(q url.Values, name string) (*int, error) {
	if !q.Has(name) {
		return nil, nil
	}
	n, err := strconv.Atoi(q.Get(name))
	if err != nil {
		return nil, errpkg.Invalid("invalid integer parameter %q", name)
	}
	return &n, nil
}
