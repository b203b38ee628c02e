package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dancebreak/internal/fileutil"
	"dancebreak/internal/services"
	"dancebreak/internal/textutil"
)

// Store is the object storage collaborator used for source downloads and
// playable media uploads.
type Store interface {
	Download(ctx context.Context, key, dst string) error
	Upload(ctx context.Context, src, key string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PlayableKey builds the object key for uploaded playable media:
// <prefix>/<user>/<YYYYMMDD_HHMMSS>_<md5(identity)[:8]>.mp4
func PlayableKey(prefix, userID, identity string, now time.Time) string {
	user := textutil.SanitizeToken(userID)
	if strings.TrimSpace(userID) == "" {
		user = "anonymous"
	}
	name := fmt.Sprintf("%s_%s.mp4", now.UTC().Format("20060102_150405"), textutil.ShortHash(identity, 8))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(user, name)
	}
	return path.Join(prefix, user, name)
}

// FilesystemStore keeps objects under a local root directory. It stands in for
// a bucket when running locally.
type FilesystemStore struct {
	root          string
	publicBaseURL string
	now           func() time.Time
}

// NewFilesystemStore returns a store rooted at root. When bucket is set objects
// live under root/bucket. publicBaseURL, when set, is used for returned URLs.
func NewFilesystemStore(root, bucket, publicBaseURL string) (*FilesystemStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "root directory required", nil)
	}
	if bucket = strings.TrimSpace(bucket); bucket != "" {
		root = filepath.Join(root, textutil.SanitizeToken(bucket))
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "create root", err)
	}
	return &FilesystemStore{
		root:          root,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		now:           time.Now,
	}, nil
}

// Root returns the directory objects are stored under.
func (s *FilesystemStore) Root() string {
	return s.root
}

// Download copies the object at key to dst.
func (s *FilesystemStore) Download(ctx context.Context, key, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "objectstore", "download", fmt.Sprintf("object %q", key), err)
		}
		return services.Wrap(services.ErrTransient, "objectstore", "download", "stat object", err)
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return services.Wrap(services.ErrTransient, "objectstore", "download", fmt.Sprintf("copy %q", key), err)
	}
	return nil
}

// Upload copies src into the store under key and returns its public URL.
func (s *FilesystemStore) Upload(ctx context.Context, src, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return "", services.Wrap(services.ErrTransient, "objectstore", "upload", fmt.Sprintf("copy to %q", key), err)
	}
	return s.publicURL(key, dst), nil
}

// PresignedURL returns a time-limited URL for key. The filesystem store has no
// signer, so the expiry is carried as a query parameter for consumers that honor it.
func (s *FilesystemStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	objPath, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(objPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "objectstore", "presign", fmt.Sprintf("object %q", key), err)
		}
		return "", services.Wrap(services.ErrTransient, "objectstore", "presign", "stat object", err)
	}
	base := s.publicURL(key, objPath)
	if ttl <= 0 {
		return base, nil
	}
	expires := s.now().Add(ttl).Unix()
	return base + "?expires=" + strconv.FormatInt(expires, 10), nil
}

// Delete removes the object at key. Missing objects are not an error.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objPath, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(objPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "objectstore", "delete", fmt.Sprintf("object %q", key), err)
	}
	return nil
}

func (s *FilesystemStore) objectPath(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))
	if cleaned == "/" {
		return "", services.Wrap(services.ErrValidation, "objectstore", "key", "empty object key", nil)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

func (s *FilesystemStore) publicURL(key, objPath string) string {
	if s.publicBaseURL != "" {
		var escaped []string
		for _, part := range strings.Split(strings.Trim(path.Clean("/"+key), "/"), "/") {
			escaped = append(escaped, url.PathEscape(part))
		}
		return s.publicBaseURL + "/" + strings.Join(escaped, "/")
	}
	return (&url.URL{Scheme: "file", Path: objPath}).String()
}
