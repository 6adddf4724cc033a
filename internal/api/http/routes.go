package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the HTTP router for the local control API.
// The remote proxy routes are only mounted when client is not nil.
func NewRouter(archive ArchiveServiceI, resources ResourceServiceI, client RemoteClientI, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	archiveHandler := NewArchiveHandler(archive, resources, logger)

	r.Post("/works/{workID}/download", archiveHandler.RequestDownload)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", archiveHandler.ListTasks)
		r.Get("/{workID}", archiveHandler.GetTask)
	})

	r.Route("/archive", func(r chi.Router) {
		r.Get("/", archiveHandler.ListArchive)
		r.Get("/{workID}", archiveHandler.GetWork)
		r.Get("/{workID}/chapters/{chapterID}", archiveHandler.GetChapter)
	})

	r.Route("/resources", func(r chi.Router) {
		r.Post("/sync", archiveHandler.SyncResources)
		r.Get("/manifest", archiveHandler.GetManifest)
		r.Get("/*", archiveHandler.GetResource)
	})

	if client != nil {
		remoteHandler := NewRemoteHandler(client, logger)

		r.Route("/remote", func(r chi.Router) {
			r.Get("/search", remoteHandler.Search)
			r.Get("/detail/{workID}", remoteHandler.Detail)
			r.Get("/book/{workID}", remoteHandler.Book)
			r.Get("/directory/{workID}", remoteHandler.Directory)
			r.Get("/content", remoteHandler.Content)
			r.Get("/chapter/{itemID}", remoteHandler.Chapter)
			r.Get("/raw/{itemID}", remoteHandler.RawFull)
			r.Get("/comments/{workID}", remoteHandler.Comments)
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
