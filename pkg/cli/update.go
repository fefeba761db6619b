package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// Version is set at build time with -ldflags "-X .../pkg/cli.Version=1.2.3".
var Version = "0.0.0-dev"

const updateRepo = "Fepozopo/nmedit"

var releasesURL = "https://api.github.com/repos/" + updateRepo + "/releases"

type ghRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

var semverRe = regexp.MustCompile(`v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?`)

// latestRelease picks the highest semver among published releases. Tags
// like "nmedit-v1.2.0" are accepted; the release name is a fallback. The
// asset matching this GOOS/GOARCH is preferred.
func latestRelease(releases []ghRelease, goos, goarch string) (*selfupdate.Release, bool) {
	var found []*selfupdate.Release
	for _, r := range releases {
		if r.Draft || r.Prerelease {
			continue
		}
		match := semverRe.FindString(r.TagName)
		if match == "" {
			match = semverRe.FindString(r.Name)
		}
		if match == "" {
			continue
		}
		v, err := semver.Parse(strings.TrimPrefix(match, "v"))
		if err != nil {
			continue
		}
		asset := ""
		for _, a := range r.Assets {
			n := strings.ToLower(a.Name)
			if strings.Contains(n, goos) && strings.Contains(n, goarch) {
				asset = a.BrowserDownloadURL
				break
			}
			if asset == "" {
				asset = a.BrowserDownloadURL
			}
		}
		found = append(found, &selfupdate.Release{Version: v, AssetURL: asset})
	}
	if len(found) == 0 {
		return nil, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Version.GT(found[j].Version) })
	return found[0], true
}

func fetchReleases(url string) ([]ghRelease, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("github API request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github API returned status %d: %s", resp.StatusCode, string(body))
	}
	var releases []ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("failed to decode github releases: %w", err)
	}
	return releases, nil
}

// CheckForUpdates compares Version with the newest GitHub release and, when
// confirm agrees, replaces the running binary and restarts it.
func CheckForUpdates(out io.Writer, confirm func(prompt string) bool) error {
	fmt.Fprintf(out, "Current version: %s\n", Version)
	releases, err := fetchReleases(releasesURL)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	latest, ok := latestRelease(releases, runtime.GOOS, runtime.GOARCH)
	if !ok {
		fmt.Fprintf(out, "No releases found for %s.\n", updateRepo)
		return nil
	}
	fmt.Fprintf(out, "Latest version: %s\n", latest.Version)

	current, err := semver.Parse(strings.TrimPrefix(Version, "v"))
	if err != nil {
		fmt.Fprintf(out, "warning: could not parse current version %q: %v\n", Version, err)
	} else if latest.Version.LTE(current) {
		fmt.Fprintf(out, "You are already running the latest version: %s.\n", current)
		return nil
	}
	if latest.AssetURL == "" {
		fmt.Fprintf(out, "A new version (%s) is available but there is no downloadable asset.\n", latest.Version)
		return nil
	}
	if !confirm(fmt.Sprintf("A new version (%s) is available. Update now? (y/N): ", latest.Version)) {
		fmt.Fprintln(out, "Update cancelled.")
		return nil
	}

	fmt.Fprintln(out, "Updating...")
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not locate executable: %w", err)
	}
	if err := selfupdate.UpdateTo(latest.AssetURL, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	// Exec only returns on error; fall back to starting a child process.
	argv := append([]string{exe}, os.Args[1:]...)
	if err := syscall.Exec(exe, argv, os.Environ()); err != nil {
		cmd := exec.Command(exe, os.Args[1:]...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		if startErr := cmd.Start(); startErr != nil {
			fmt.Fprintf(out, "Updated to version %s; please restart the application manually.\n", latest.Version)
			return nil
		}
		os.Exit(0)
	}
	return nil
}
