// Package github mirrors the critical-item history file into a GitHub
// repository through the contents API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

const defaultHTTPTimeout = 30 * time.Second

// Config configures the GitHub history store.
type Config struct {
	Token      string // bearer token with contents:write
	Repository string // "owner/repo"
	Path       string // file path inside the repository
	Branch     string // optional, default branch when empty
	BaseURL    string // optional, DefaultBaseURL when empty
	Committer  string // commit message prefix
}

// HistoryStore keeps the history CSV as a file in a GitHub repository.
// Writes send the blob SHA that was read, so GitHub rejects a write that
// raced another commit with 409, reported as ErrConflict.
type HistoryStore struct {
	cfg    Config
	client *http.Client
}

// NewHistoryStore creates a store. A nil client uses a client with a 30s timeout.
func NewHistoryStore(cfg Config, client *http.Client) (*HistoryStore, error) {
	if cfg.Token == "" || cfg.Repository == "" || cfg.Path == "" {
		return nil, fmt.Errorf("%w: github store needs token, repository and path", storage.ErrInvalidInput)
	}
	if strings.Count(cfg.Repository, "/") != 1 {
		return nil, fmt.Errorf("%w: repository must be owner/repo, got %q", storage.ErrInvalidInput, cfg.Repository)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HistoryStore{cfg: cfg, client: client}, nil
}

// Compile-time interface checks.
var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.SeriesWriter = (*HistoryStore)(nil)
)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "github" }

type contentResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	series, _, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if e := storage.FindEntry(series, day); e != nil {
		return e, nil
	}
	return nil, storage.ErrNotFound
}

// All retrieves every entry ordered by date ASC. A missing file is an empty series.
func (s *HistoryStore) All(ctx context.Context) ([]*domain.CriticalHistoryEntry, error) {
	series, _, err := s.fetch(ctx)
	return series, err
}

// Upsert merges e into the remote file in one commit.
func (s *HistoryStore) Upsert(ctx context.Context, e *domain.CriticalHistoryEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}
	series, sha, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("%s: critical history %s (%d/%d)", s.committer(), e.Date, e.CriticalItems, e.TotalItems)
	return s.put(ctx, storage.MergeEntry(series, e), sha, msg)
}

// ReplaceAll overwrites the remote file with entries.
func (s *HistoryStore) ReplaceAll(ctx context.Context, entries []*domain.CriticalHistoryEntry) error {
	_, sha, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	sorted := make([]*domain.CriticalHistoryEntry, len(entries))
	copy(sorted, entries)
	storage.SortEntries(sorted)
	msg := fmt.Sprintf("%s: critical history sync (%d days)", s.committer(), len(sorted))
	return s.put(ctx, sorted, sha, msg)
}

func (s *HistoryStore) committer() string {
	if s.cfg.Committer != "" {
		return s.cfg.Committer
	}
	return "stock-movement-lab"
}

func (s *HistoryStore) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.cfg.BaseURL, s.cfg.Repository, strings.TrimLeft(s.cfg.Path, "/"))
}

// fetch returns the decoded series and the blob SHA. A missing file yields an empty SHA.
func (s *HistoryStore) fetch(ctx context.Context) ([]*domain.CriticalHistoryEntry, string, error) {
	u := s.contentsURL()
	if s.cfg.Branch != "" {
		u += "?ref=" + url.QueryEscape(s.cfg.Branch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, "", nil
	default:
		return nil, "", fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, string(body))
	}

	var content contentResponse
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, "", fmt.Errorf("parsing response: %w", err)
	}
	if content.Encoding != "" && content.Encoding != "base64" {
		return nil, "", fmt.Errorf("unsupported content encoding %q", content.Encoding)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("decoding content: %w", err)
	}
	series, err := storage.DecodeHistoryCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	return series, content.SHA, nil
}

func (s *HistoryStore) put(ctx context.Context, entries []*domain.CriticalHistoryEntry, sha, message string) error {
	var buf bytes.Buffer
	if err := storage.EncodeHistoryCSV(&buf, entries); err != nil {
		return err
	}
	payload, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(buf.Bytes()),
		SHA:     sha,
		Branch:  s.cfg.Branch,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return storage.ErrConflict
	default:
		return fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, string(body))
	}
}

func (s *HistoryStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}
