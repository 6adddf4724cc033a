package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/bookvault/internal/codec"
	"github.com/veranemoloko/bookvault/internal/domain"
	"github.com/veranemoloko/bookvault/internal/storage"
)

func setupArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "books")

	t.Setenv("BV_ARCHIVE_DIR", archiveDir)
	t.Setenv("BV_RESOURCE_DIR", filepath.Join(dir, "Resources"))
	t.Setenv("BV_MANIFEST_FILE", filepath.Join(dir, ".files.json"))
	t.Setenv("BV_LOG_LEVEL", "error")

	files := storage.NewFileStorage(archiveDir)
	work := domain.Work{
		ID:     "W1",
		Title:  "Book One",
		Author: "someone",
		Chapters: []domain.ChapterDescriptor{
			{ID: "C1", Title: "One", Position: 0},
			{ID: "C2", Title: "Two", Position: 1},
		},
	}
	require.NoError(t, files.WriteJSON("W1/info.json", work))
	require.NoError(t, files.WriteJSON("W1/C1.json", domain.ChapterRecord{
		Title:   "One",
		Content: codec.Encode("第一章", "C1"),
	}))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestReadCommand(t *testing.T) {
	setupArchive(t)

	out, err := run(t, "read", "W1", "C1", "--json")
	require.NoError(t, err)

	var view domain.ChapterView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "第一章", view.Content)
	assert.Nil(t, view.Previous)
	require.NotNil(t, view.Next)
	assert.Equal(t, "C2", *view.Next)

	out, err = run(t, "read", "W1", "C1")
	require.NoError(t, err)
	assert.Contains(t, out, "第一章")
	assert.Contains(t, out, "prev: -  next: C2")
}

func TestReadCommand_MissingChapter(t *testing.T) {
	setupArchive(t)

	_, err := run(t, "read", "W1", "C2")
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	setupArchive(t)

	out, err := run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "W1\tBook One\tsomeone\t2 chapters", lines[1])
}

func TestCommandArgs(t *testing.T) {
	_, err := run(t, "download")
	assert.Error(t, err)

	_, err = run(t, "read", "W1")
	assert.Error(t, err)
}

func TestResolveAPIRoot_WaitsForFirstSync(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/res/.files.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"api.json":"hashA"}`))
	})
	mux.HandleFunc("/res/api.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rootUrl":"http://content.example"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	setupArchive(t)
	t.Setenv("BV_API_ROOT_URL", "")
	t.Setenv("BV_MANIFEST_URL", server.URL+"/res/.files.json")

	a, err := newApp(&rootOptions{envFile: filepath.Join(t.TempDir(), "missing.env")}, io.Discard)
	require.NoError(t, err)
	defer a.close()

	root, err := a.resolveAPIRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://content.example", root)
	assert.True(t, a.resources.HasResource("api.json"))
}

func TestResolveAPIRoot_FirstSyncFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	setupArchive(t)
	t.Setenv("BV_API_ROOT_URL", "")
	t.Setenv("BV_MANIFEST_URL", server.URL+"/res/.files.json")

	a, err := newApp(&rootOptions{envFile: filepath.Join(t.TempDir(), "missing.env")}, io.Discard)
	require.NoError(t, err)
	defer a.close()

	_, err = a.resolveAPIRoot(context.Background())
	assert.Error(t, err)
}
