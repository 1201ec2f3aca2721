package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubBackend implements a read-only catalog store using GitHub's repository contents API.
// The catalog root is a directory inside the repository at a given ref.
type GitHubBackend struct {
	owner       string
	repo        string
	root        string
	ref         string
	token       string
	apiURL      string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// GitHubContent represents one entry of GitHub's contents API.
type GitHubContent struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
}

// NewGitHubBackend creates a new GitHub catalog store. root is the catalog directory
// inside the repository ("" for the repository root), ref a branch, tag or commit
// ("" for the default branch) and token an optional API token.
func NewGitHubBackend(owner, repo, root, ref, token string, log *slog.Logger) *GitHubBackend {
	uri := fmt.Sprintf("github://%s/%s", owner, path.Join(repo, root))
	if ref != "" {
		uri += "?ref=" + ref
	}
	return &GitHubBackend{
		owner:       owner,
		repo:        repo,
		root:        strings.Trim(root, "/"),
		ref:         ref,
		token:       token,
		apiURL:      defaultGitHubAPI,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: uri,
	}
}

// WithAPIURL points the backend at a different API endpoint, e.g. GitHub Enterprise.
func (b *GitHubBackend) WithAPIURL(apiURL string) *GitHubBackend {
	b.apiURL = strings.TrimSuffix(apiURL, "/")
	return b
}

// ListBundles returns the directories at the catalog root.
func (b *GitHubBackend) ListBundles(ctx context.Context) ([]string, error) {
	entries, err := b.listDir(ctx, b.root)
	if err != nil {
		return nil, err
	}

	var bundles []string
	for _, entry := range entries {
		if entry.Type == "dir" && !strings.HasPrefix(entry.Name, ".") {
			bundles = append(bundles, entry.Name)
		}
	}
	sort.Strings(bundles)
	return bundles, nil
}

// ReadFile fetches a bundle file and decodes its base64 content.
func (b *GitHubBackend) ReadFile(ctx context.Context, bundle, file string) ([]byte, error) {
	if err := validateBundlePath(bundle, file); err != nil {
		return nil, err
	}

	body, err := b.get(ctx, objectKey(b.root, bundle, file))
	if err != nil {
		return nil, err
	}

	var content GitHubContent
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	if content.Type != "file" {
		return nil, interfaces.ErrContentNotFound
	}
	if content.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding: %s", content.Encoding)
	}

	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}

	b.log.Debug("Fetched bundle file from GitHub",
		slog.String("path", content.Path),
		slog.Int("size", len(data)))

	return data, nil
}

// ListFiles walks the bundle directory recursively.
func (b *GitHubBackend) ListFiles(ctx context.Context, bundle string) ([]string, error) {
	if err := validateBundle(bundle); err != nil {
		return nil, err
	}

	bundleRoot := objectKey(b.root, bundle, "")
	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := b.listDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			switch entry.Type {
			case "dir":
				if err := walk(entry.Path); err != nil {
					return err
				}
			case "file":
				files = append(files, strings.TrimPrefix(entry.Path, bundleRoot+"/"))
			}
		}
		return nil
	}

	if err := walk(bundleRoot); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// WriteFile is not implemented for this read-only backend.
func (b *GitHubBackend) WriteFile(ctx context.Context, bundle, file string, data []byte) error {
	return fmt.Errorf("%w: %s", interfaces.ErrReadOnlyBackend, b.Name())
}

// Available checks if the GitHub repository is accessible.
func (b *GitHubBackend) Available(ctx context.Context) bool {
	reqURL := fmt.Sprintf("%s/repos/%s/%s", b.apiURL, b.owner, b.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		b.log.Debug("Failed to create request", "err", err)
		return false
	}
	b.setHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("GitHub backend unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Debug("GitHub backend unavailable",
			slog.String("status", resp.Status))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *GitHubBackend) Name() string {
	return fmt.Sprintf("github-%s-%s", b.owner, b.repo)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *GitHubBackend) LocationURI() string {
	return b.locationURI
}

func (b *GitHubBackend) listDir(ctx context.Context, dir string) ([]GitHubContent, error) {
	body, err := b.get(ctx, dir)
	if err != nil {
		return nil, err
	}

	var entries []GitHubContent
	if err := json.Unmarshal(body, &entries); err != nil {
		// a single object means the path is a file
		return nil, fmt.Errorf("%s is not a directory: %w", dir, err)
	}
	return entries, nil
}

func (b *GitHubBackend) get(ctx context.Context, p string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", b.apiURL, b.owner, b.repo, strings.TrimPrefix(p, "/"))
	if b.ref != "" {
		reqURL += "?ref=" + url.QueryEscape(b.ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	b.setHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrContentNotFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API error: %s, %s", resp.Status, string(body))
	}
	return body, nil
}

func (b *GitHubBackend) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
}
