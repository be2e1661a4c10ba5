package testing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// HubCommit is the revision sha served by FakeHub.
const HubCommit = "0123456789abcdef0123456789abcdef01234567"

// FakeHub serves one model repository over the Hub HTTP API.
// Files ending in .safetensors are listed as LFS objects with a sha256 oid.
type FakeHub struct {
	Server *httptest.Server

	mu        sync.Mutex
	repo      string
	files     map[string][]byte
	corrupt   map[string]bool
	failing   map[string]int
	revFails  int
	token     string
	pageSize  int
	downloads map[string]int
}

// NewFakeHub starts a hub for repo serving files. It is closed on test cleanup.
func NewFakeHub(t *testing.T, repo string, files map[string]string) *FakeHub {
	t.Helper()
	h := &FakeHub{
		repo:      repo,
		files:     make(map[string][]byte),
		corrupt:   make(map[string]bool),
		failing:   make(map[string]int),
		downloads: make(map[string]int),
	}
	for p, c := range files {
		h.files[p] = []byte(c)
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.Server.Close)
	return h
}

// URL is the hub endpoint.
func (h *FakeHub) URL() string { return h.Server.URL }

// RequireToken rejects requests without the bearer token.
func (h *FakeHub) RequireToken(token string) *FakeHub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	return h
}

// Paginate splits tree listings into pages of n entries.
func (h *FakeHub) Paginate(n int) *FakeHub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pageSize = n
	return h
}

// Corrupt serves different bytes for path than its listed digest.
func (h *FakeHub) Corrupt(path string) *FakeHub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.corrupt[path] = true
	return h
}

// FailDownload answers the next n downloads of path with a 500.
func (h *FakeHub) FailDownload(path string, n int) *FakeHub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failing[path] = n
	return h
}

// FailRevision answers the next n revision lookups with a 503. A negative
// n fails every lookup.
func (h *FakeHub) FailRevision(n int) *FakeHub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revFails = n
	return h
}

// Downloads reports how often path was downloaded successfully.
func (h *FakeHub) Downloads(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.downloads[path]
}

func (h *FakeHub) serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials in Authorization header"}`))
		return
	}

	api := "/api/models/" + h.repo
	resolve := "/" + h.repo + "/resolve/"
	switch {
	case strings.HasPrefix(r.URL.Path, api+"/revision/"):
		if h.revFails != 0 {
			if h.revFails > 0 {
				h.revFails--
			}
			http.Error(w, `{"error":"Service Unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": h.repo, "sha": HubCommit})
	case strings.HasPrefix(r.URL.Path, api+"/tree/"):
		h.serveTree(w, r)
	case strings.HasPrefix(r.URL.Path, resolve):
		rest := strings.TrimPrefix(r.URL.Path, resolve)
		_, path, _ := strings.Cut(rest, "/")
		h.serveFile(w, path)
	default:
		http.Error(w, `{"error":"Repository not found"}`, http.StatusNotFound)
	}
}

func (h *FakeHub) serveTree(w http.ResponseWriter, r *http.Request) {
	paths := make([]string, 0, len(h.files))
	for p := range h.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	type lfs struct {
		Oid  string `json:"oid"`
		Size int64  `json:"size"`
	}
	type entry struct {
		Type string `json:"type"`
		Path string `json:"path"`
		Size int64  `json:"size"`
		Oid  string `json:"oid"`
		LFS  *lfs   `json:"lfs,omitempty"`
	}
	// A directory entry, which listings include and clients skip.
	entries := []entry{{Type: "directory", Path: "subdir", Oid: "d0"}}
	for _, p := range paths {
		data := h.files[p]
		e := entry{Type: "file", Path: p, Size: int64(len(data)), Oid: fmt.Sprintf("%040x", len(data))}
		if strings.HasSuffix(p, ".safetensors") {
			sum := sha256.Sum256(data)
			e.LFS = &lfs{Oid: hex.EncodeToString(sum[:]), Size: int64(len(data))}
		}
		entries = append(entries, e)
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	end := len(entries)
	if h.pageSize > 0 && start+h.pageSize < end {
		end = start + h.pageSize
		next := *r.URL
		q := next.Query()
		q.Set("cursor", strconv.Itoa(end))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<%s%s>; rel="next"`, h.Server.URL, next.RequestURI()))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries[start:end])
}

func (h *FakeHub) serveFile(w http.ResponseWriter, path string) {
	data, ok := h.files[path]
	if !ok {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}
	if h.failing[path] > 0 {
		h.failing[path]--
		http.Error(w, "upstream error", http.StatusInternalServerError)
		return
	}
	if h.corrupt[path] {
		data = append([]byte("tampered:"), data...)
	}
	h.downloads[path]++
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
