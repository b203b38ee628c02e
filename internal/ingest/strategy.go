package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"dancebreak/internal/fileutil"
	"dancebreak/internal/objectstore"
	"dancebreak/internal/source"
)

// Strategy fetches a source into dst.
type Strategy interface {
	Name() string
	Applies(src source.Source) bool
	Fetch(ctx context.Context, src source.Source, dst string) error
}

// ObjectStoreStrategy downloads object keys from the configured store.
type ObjectStoreStrategy struct {
	Store objectstore.Store
}

func (s ObjectStoreStrategy) Name() string { return "object_store" }

func (s ObjectStoreStrategy) Applies(src source.Source) bool {
	return src.Kind == source.KindObject && s.Store != nil
}

func (s ObjectStoreStrategy) Fetch(ctx context.Context, src source.Source, dst string) error {
	return s.Store.Download(ctx, src.Locator, dst)
}

// LocalFileStrategy copies a local file into the work directory.
type LocalFileStrategy struct{}

func (LocalFileStrategy) Name() string { return "local_file" }

func (LocalFileStrategy) Applies(src source.Source) bool { return src.Kind == source.KindFile }

func (LocalFileStrategy) Fetch(ctx context.Context, src source.Source, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fileutil.CopyFileVerified(src.Locator, dst)
}

// Profile is one yt-dlp client configuration.
type Profile struct {
	Name         string
	Format       string
	PlayerClient string
}

// Profiles known to YTDLPStrategy, keyed by config name.
var Profiles = map[string]Profile{
	"ios":     {Name: "ios", Format: "best[ext=mp4][height<=720]/best[ext=mp4]/best", PlayerClient: "ios"},
	"android": {Name: "android", Format: "best[ext=mp4]/best", PlayerClient: "android"},
	"web_low": {Name: "web_low", Format: "worst[ext=mp4]/worst"},
}

// YTDLPStrategy downloads external URLs with yt-dlp using one client profile.
type YTDLPStrategy struct {
	Binary               string
	Profile              Profile
	CookiesFile          string
	InstagramCookiesFile string
}

func (s YTDLPStrategy) Name() string { return "yt-dlp:" + s.Profile.Name }

func (s YTDLPStrategy) Applies(src source.Source) bool { return src.Kind == source.KindExternal }

func (s YTDLPStrategy) Fetch(ctx context.Context, src source.Source, dst string) error {
	cmd := exec.CommandContext(ctx, s.binary(), s.Args(src, dst)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("yt-dlp %s: %w", s.Profile.Name, ctxErr)
		}
		return fmt.Errorf("yt-dlp %s: %w: %s", s.Profile.Name, err, lastLine(string(out)))
	}
	return nil
}

// Args builds the yt-dlp argument list for src.
func (s YTDLPStrategy) Args(src source.Source, dst string) []string {
	args := []string{"--no-playlist", "--no-progress", "--quiet", "--no-warnings", "-f", s.Profile.Format, "-o", dst}
	if s.Profile.PlayerClient != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+s.Profile.PlayerClient)
	}
	if cookies := s.cookiesFor(src); cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	return append(args, "--", src.Locator)
}

func (s YTDLPStrategy) cookiesFor(src source.Source) string {
	path := s.CookiesFile
	if source.IsInstagram(src.Host()) {
		path = s.InstagramCookiesFile
	}
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

func (s YTDLPStrategy) binary() string {
	if b := strings.TrimSpace(s.Binary); b != "" {
		return b
	}
	return "yt-dlp"
}

// ProfileStrategies builds one yt-dlp strategy per known profile name in
// order. Unknown names are returned separately.
func ProfileStrategies(binary string, names []string, cookies, instagramCookies string) ([]Strategy, []string) {
	var (
		out     []Strategy
		unknown []string
	)
	for _, name := range names {
		profile, ok := Profiles[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, YTDLPStrategy{
			Binary:               binary,
			Profile:              profile,
			CookiesFile:          cookies,
			InstagramCookiesFile: instagramCookies,
		})
	}
	return out, unknown
}

// HTTPStrategy downloads a direct media URL. It runs after the yt-dlp
// profiles for links yt-dlp has no extractor for.
type HTTPStrategy struct {
	Client *http.Client
}

func (HTTPStrategy) Name() string { return "http" }

func (HTTPStrategy) Applies(src source.Source) bool {
	if src.Kind != source.KindExternal || src.IsSynthetic() {
		return false
	}
	return strings.HasPrefix(src.Locator, "http://") || strings.HasPrefix(src.Locator, "https://")
}

func (s HTTPStrategy) Fetch(ctx context.Context, src source.Source, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Locator, nil)
	if err != nil {
		return fmt.Errorf("http fetch: new request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http fetch: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return fmt.Errorf("http fetch: got a web page (%s), not media", ct)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("http fetch: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("http fetch: write body: %w", err)
	}
	return out.Close()
}

type attemptError struct {
	strategy string
	err      error
}

func (a attemptError) Error() string {
	return fmt.Sprintf("%s: %v", a.strategy, a.err)
}

func (a attemptError) Unwrap() error { return a.err }

var errNoStrategy = errors.New("no acquisition strategy applies to this source")

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.LastIndex(output, "\n"); idx >= 0 {
		return strings.TrimSpace(output[idx+1:])
	}
	return output
}
