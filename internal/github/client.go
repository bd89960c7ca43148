// Package github implements the remote durable backend: an authenticated
// Git Data API client that mirrors a batch of collection files into a
// repository as one atomic commit.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/syncqueue"
)

// Client commits file batches to one branch of one repository. The zero
// value is not usable; construct with NewClient.
type Client struct {
	base   string
	repo   string
	branch string
	prefix string
	token  string
	http   *http.Client
	log    logging.Logger
}

// NewClient creates a client for the given repository ("owner/name") and
// branch. Files are written under prefix inside the repository tree.
func NewClient(base, token, repo, branch, prefix string, log logging.Logger) *Client {
	return &Client{
		base:   base,
		repo:   repo,
		branch: branch,
		prefix: prefix,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log.With("module", "github"),
	}
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type commitResponse struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type blobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type shaResponse struct {
	SHA string `json:"sha"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type treeRequest struct {
	BaseTree string      `json:"base_tree"`
	Tree     []treeEntry `json:"tree"`
}

type commitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type refUpdateRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

// Commit pushes files as a single commit on top of the current branch tip.
// Unchanged repository files are inherited through base_tree, not
// re-uploaded. The final ref update is non-forced, so a concurrent external
// change to the branch fails the whole batch instead of being overwritten.
func (c *Client) Commit(ctx context.Context, files []syncqueue.File) error {
	var ref refResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/git/ref/heads/%s", c.repo, c.branch), nil, &ref); err != nil {
		return fmt.Errorf("resolve branch tip: %w", err)
	}
	tip := ref.Object.SHA

	var parent commitResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/git/commits/%s", c.repo, tip), nil, &parent); err != nil {
		return fmt.Errorf("read tip commit: %w", err)
	}

	entries := make([]treeEntry, 0, len(files))
	for _, f := range files {
		var blob shaResponse
		req := blobRequest{Content: f.Content, Encoding: "utf-8"}
		if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/git/blobs", c.repo), req, &blob); err != nil {
			return fmt.Errorf("create blob %s: %w", f.Name, err)
		}
		entries = append(entries, treeEntry{
			Path: path.Join(c.prefix, f.Name),
			Mode: "100644",
			Type: "blob",
			SHA:  blob.SHA,
		})
	}

	var tree shaResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/git/trees", c.repo), treeRequest{BaseTree: parent.Tree.SHA, Tree: entries}, &tree); err != nil {
		return fmt.Errorf("create tree: %w", err)
	}

	var commit shaResponse
	msg := fmt.Sprintf("content: update %d file(s)", len(files))
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/git/commits", c.repo), commitRequest{Message: msg, Tree: tree.SHA, Parents: []string{tip}}, &commit); err != nil {
		return fmt.Errorf("create commit: %w", err)
	}

	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/git/refs/heads/%s", c.repo, c.branch), refUpdateRequest{SHA: commit.SHA, Force: false}, nil); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}

	c.log.Debug(ctx, "commit pushed", "sha", commit.SHA, "files", len(files))
	return nil
}

func (c *Client) do(ctx context.Context, method, p string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+p, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, p, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
