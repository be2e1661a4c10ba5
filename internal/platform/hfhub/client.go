// Package hfhub is a minimal client for the Hugging Face Hub model API:
// revision lookup, recursive file listing and file download.
package hfhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// DefaultEndpoint is the public Hub.
const DefaultEndpoint = "https://huggingface.co"

// Entry is one item of a repository tree listing.
type Entry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Oid  string `json:"oid"`
	LFS  *LFS   `json:"lfs,omitempty"`
}

// LFS describes a large file. Oid is the sha256 of the content.
type LFS struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return e.Type == "file" }

// Digest returns the expected content digest for LFS files. Plain git
// objects carry a sha1 blob id, which is not a content hash, so they have
// none.
func (e Entry) Digest() (digest.Digest, bool) {
	if e.LFS == nil || e.LFS.Oid == "" {
		return "", false
	}
	d := digest.NewDigestFromEncoded(digest.SHA256, e.LFS.Oid)
	if d.Validate() != nil {
		return "", false
	}
	return d, true
}

// APIError is a non-2xx response from the Hub.
type APIError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("hub request %s returned %d", e.URL, e.StatusCode)
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		msg += " (check HUGGING_FACE_TOKEN and that the repository terms were accepted)"
	case http.StatusNotFound:
		msg += " (repository, revision or file not found)"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Client talks to a Hub endpoint.
type Client struct {
	HTTP     *http.Client
	Endpoint string
	Token    string
}

// NewClient creates a client. An empty endpoint selects the public Hub.
func NewClient(endpoint, token string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		// Downloads are bounded by the caller's context, not a client timeout.
		HTTP:     &http.Client{Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, ResponseHeaderTimeout: 60 * time.Second}},
		Endpoint: strings.TrimRight(endpoint, "/"),
		Token:    token,
	}
}

// Revision resolves rev (a branch, tag or sha) to a commit sha.
func (c *Client) Revision(ctx context.Context, repo, rev string) (string, error) {
	var info struct {
		SHA string `json:"sha"`
	}
	u := c.Endpoint + "/api/models/" + repo + "/revision/" + url.PathEscape(rev)
	resp, err := c.get(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode revision of %s: %w", repo, err)
	}
	if info.SHA == "" {
		return "", fmt.Errorf("revision %s of %s has no sha", rev, repo)
	}
	return info.SHA, nil
}

// ListFiles returns every file in the repository at rev, following
// pagination.
func (c *Client) ListFiles(ctx context.Context, repo, rev string) ([]Entry, error) {
	next := c.Endpoint + "/api/models/" + repo + "/tree/" + url.PathEscape(rev) + "?recursive=true"
	var files []Entry
	for next != "" {
		resp, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		var page []Entry
		err = json.NewDecoder(resp.Body).Decode(&page)
		link := resp.Header.Get("Link")
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode file listing of %s: %w", repo, err)
		}
		for _, e := range page {
			if e.IsFile() {
				files = append(files, e)
			}
		}
		next = nextLink(link)
	}
	return files, nil
}

// Download opens a file at rev. The caller closes the body.
func (c *Client) Download(ctx context.Context, repo, rev, path string) (io.ReadCloser, int64, error) {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := c.Endpoint + "/" + repo + "/resolve/" + url.PathEscape(rev) + "/" + strings.Join(segments, "/")
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, -1, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, URL: u, Message: apiMessage(body)}
	}
	return resp, nil
}

func apiMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

// nextLink extracts the rel="next" target of a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		target, params, ok := strings.Cut(part, ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}
		return strings.Trim(strings.TrimSpace(target), "<>")
	}
	return ""
}
