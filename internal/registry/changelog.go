// Package registry resolves human-readable changelog excerpts for
// images with pending updates. The fetch strategy depends on the
// image's registry family.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Kind selects the changelog-fetch strategy for an image.
type Kind string

const (
	// KindLinuxserver uses the linuxserver.io package-index API.
	KindLinuxserver Kind = "linuxserver"
	// KindGitHub uses the GitHub releases API.
	KindGitHub Kind = "github"
	// KindGeneric is the fallback for every other registry.
	KindGeneric Kind = "generic"
)

const (
	defaultLinuxserverBase = "https://api.linuxserver.io"
	defaultGitHubBase      = "https://api.github.com"
	maxChangelogEntries    = 3
	genericChangelogText   = "No changelog source for this registry; check the project page."
)

// InferKind guesses the registry family from an image reference.
// Overrides from the services file take precedence over this guess.
func InferKind(image string) Kind {
	if strings.HasPrefix(image, "lscr.io/linuxserver/") ||
		strings.HasPrefix(image, "ghcr.io/linuxserver/") ||
		strings.HasPrefix(image, "linuxserver/") {
		return KindLinuxserver
	}
	return KindGeneric
}

// Fetcher retrieves changelog excerpts for images.
type Fetcher struct {
	logger          zerolog.Logger
	httpClient      *http.Client
	linuxserverBase string
	githubBase      string
	githubToken     string
}

// Option customizes Fetcher behavior.
type Option func(*Fetcher)

// WithLinuxserverBase overrides the package-index API base URL (for tests).
func WithLinuxserverBase(base string) Option {
	return func(f *Fetcher) {
		f.linuxserverBase = base
	}
}

// WithGitHubBase overrides the releases API base URL (for tests).
func WithGitHubBase(base string) Option {
	return func(f *Fetcher) {
		f.githubBase = base
	}
}

// NewFetcher builds a changelog fetcher. The GitHub token is optional
// and only raises the API rate limit.
func NewFetcher(logger zerolog.Logger, githubToken string, opts ...Option) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	f := &Fetcher{
		logger:          logger,
		httpClient:      client.StandardClient(),
		linuxserverBase: defaultLinuxserverBase,
		githubBase:      defaultGitHubBase,
		githubToken:     githubToken,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Changelog returns a short changelog excerpt for the image. Fetch
// errors degrade to the generic fallback text; update detection must
// not fail because a changelog source is unreachable.
func (f *Fetcher) Changelog(ctx context.Context, kind Kind, image, repo string) string {
	switch kind {
	case KindLinuxserver:
		if text, err := f.linuxserverChangelog(ctx, image); err == nil && text != "" {
			return text
		} else if err != nil {
			f.logger.Warn().Err(err).Str("image", image).Msg("linuxserver changelog fetch failed")
		}
	case KindGitHub:
		if text, err := f.githubReleases(ctx, repo); err == nil && text != "" {
			return text
		} else if err != nil {
			f.logger.Warn().Err(err).Str("repo", repo).Msg("github releases fetch failed")
		}
	}
	return genericChangelogText
}

type linuxserverChange struct {
	Date   string `json:"date"`
	Change string `json:"change"`
}

// linuxserverChangelog queries the package-index API for dated change
// entries, filtered by application name.
func (f *Fetcher) linuxserverChangelog(ctx context.Context, image string) (string, error) {
	app := appNameFromImage(image)
	endpoint := fmt.Sprintf("%s/api/v1/changelog?app=%s", f.linuxserverBase, url.QueryEscape(app))

	var changes []linuxserverChange
	if err := f.getJSON(ctx, endpoint, "", &changes); err != nil {
		return "", err
	}

	lines := make([]string, 0, maxChangelogEntries)
	for _, change := range changes {
		if len(lines) == maxChangelogEntries {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s", change.Date, change.Change))
	}
	return strings.Join(lines, "\n"), nil
}

type githubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
}

// githubReleases queries the releases API for recent tagged releases.
func (f *Fetcher) githubReleases(ctx context.Context, repo string) (string, error) {
	if repo == "" {
		return "", fmt.Errorf("github registry kind requires a repo")
	}
	endpoint := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", f.githubBase, repo, maxChangelogEntries)

	var releases []githubRelease
	if err := f.getJSON(ctx, endpoint, f.githubToken, &releases); err != nil {
		return "", err
	}

	lines := make([]string, 0, len(releases))
	for _, release := range releases {
		label := release.Name
		if label == "" {
			label = release.TagName
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", label, release.PublishedAt.Format("2006-01-02")))
	}
	return strings.Join(lines, "\n"), nil
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint, bearer string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("changelog api returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// appNameFromImage extracts the application name from an image
// reference: "lscr.io/linuxserver/radarr:latest" → "radarr".
func appNameFromImage(image string) string {
	name := image
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "@"); idx != -1 {
		name = name[:idx]
	}
	if idx := strings.Index(name, ":"); idx != -1 {
		name = name[:idx]
	}
	return name
}
