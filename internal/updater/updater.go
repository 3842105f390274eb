package updater

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Release repository checked for newer versions.
const (
	RepoOwner = "Sudhan30"
	RepoName  = "my-blog-site-cluster-infra-sub001"
)

// apiBase is swapped out by tests.
var apiBase = "https://api.github.com"

// Release is the subset of the GitHub release payload we read.
type Release struct {
	TagName     string    `json:"tag_name"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// UpdateInfo reports whether a newer release exists.
type UpdateInfo struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
}

// Check compares the running version against the latest GitHub release.
// Development builds ("dev") never report an update.
func Check(current string) (*UpdateInfo, error) {
	if current == "dev" {
		return &UpdateInfo{CurrentVersion: current, LatestVersion: current}, nil
	}

	currentVer, err := parseVersion(current)
	if err != nil {
		return nil, fmt.Errorf("invalid running version %q: %w", current, err)
	}

	release, err := latestRelease(RepoOwner, RepoName)
	if err != nil {
		return nil, err
	}

	latestVer, err := parseVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("invalid release tag %q: %w", release.TagName, err)
	}

	return &UpdateInfo{
		Available:      latestVer.newerThan(currentVer),
		CurrentVersion: currentVer.String(),
		LatestVersion:  latestVer.String(),
		ReleaseURL:     release.HTMLURL,
	}, nil
}

// latestRelease fetches the newest published release.
func latestRelease(owner, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", apiBase, owner, repo)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "hpa-verify")
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach release API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no published releases")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	return &release, nil
}

// version is a parsed semver triple. Pre-release suffixes are ignored.
type version struct {
	major, minor, patch int
}

func parseVersion(s string) (version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return version{}, fmt.Errorf("want major.minor.patch, got %q", s)
	}

	var v version
	for i, dst := range []*int{&v.major, &v.minor, &v.patch} {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return version{}, fmt.Errorf("component %q is not a number", parts[i])
		}
		*dst = n
	}
	return v, nil
}

func (v version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.major, v.minor, v.patch)
}

func (v version) newerThan(other version) bool {
	if v.major != other.major {
		return v.major > other.major
	}
	if v.minor != other.minor {
		return v.minor > other.minor
	}
	return v.patch > other.patch
}
