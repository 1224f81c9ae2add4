package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
)

// Downloader fetches image bytes
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// SaveResult describes a successful Save
type SaveResult struct {
	Filename string
	// Cached is true when the file already existed and nothing was fetched
	Cached bool
}

// ImageStore keeps downloaded images in one directory, named
// {post_id}_{index}.{ext}. A name that already exists on disk is never
// fetched again.
type ImageStore struct {
	dir        string
	downloader Downloader
	logger     logger.Logger

	mu    sync.RWMutex
	known map[string]bool
	group singleflight.Group
}

// NewImageStore creates the directory if needed and indexes the images
// already present
func NewImageStore(dir string, d Downloader, log logger.Logger) (*ImageStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to create image directory")
	}

	s := &ImageStore{
		dir:        dir,
		downloader: d,
		logger:     log,
		known:      make(map[string]bool),
	}
	if err := s.scanExistingFiles(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to scan existing files")
	}
	return s, nil
}

func (s *ImageStore) scanExistingFiles() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && IsImageFile(e.Name()) {
			s.known[e.Name()] = true
		}
	}
	return nil
}

// ExtensionFor derives the file extension from an image URL
func ExtensionFor(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "png":
		return "png"
	case "gif":
		return "gif"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

// FilenameFor returns the stable file name for an image of a post
func FilenameFor(imageURL, postID, index string) string {
	return fmt.Sprintf("%s_%s.%s", sanitize(postID), sanitize(index), ExtensionFor(imageURL))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// IsImageFile reports whether name has one of the stored extensions
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// Save stores the image at imageURL under the name derived from postID and
// index. Concurrent calls for the same name share one fetch.
func (s *ImageStore) Save(ctx context.Context, imageURL, postID, index string) (SaveResult, error) {
	if imageURL == "" {
		return SaveResult{}, errs.Validation("empty image url")
	}
	name := FilenameFor(imageURL, postID, index)
	if s.Exists(name) {
		return SaveResult{Filename: name, Cached: true}, nil
	}

	v, err, _ := s.group.Do(name, func() (interface{}, error) {
		if s.Exists(name) {
			return SaveResult{Filename: name, Cached: true}, nil
		}
		if s.downloader == nil {
			return nil, errs.New(errs.ErrorTypeNetwork, "no downloader configured")
		}
		data, err := s.downloader.Download(ctx, imageURL)
		if err != nil {
			return nil, err
		}
		if err := WriteFileAtomic(filepath.Join(s.dir, name), data, 0644); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to save image")
		}
		s.mu.Lock()
		s.known[name] = true
		s.mu.Unlock()
		return SaveResult{Filename: name}, nil
	})
	if err != nil {
		logger.LogImage(s.logger, postID, imageURL, "", err)
		return SaveResult{}, err
	}
	res := v.(SaveResult)
	logger.LogImage(s.logger, postID, imageURL, res.Filename, nil)
	return res, nil
}

// Exists reports whether name is present, checking the disk when the index
// does not know it
func (s *ImageStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	s.mu.RLock()
	ok := s.known[name]
	s.mu.RUnlock()
	if ok {
		return true
	}
	if fi, err := os.Stat(filepath.Join(s.dir, name)); err == nil && !fi.IsDir() {
		s.mu.Lock()
		s.known[name] = true
		s.mu.Unlock()
		return true
	}
	return false
}

// Read returns the bytes of a stored image
func (s *ImageStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to read image")
	}
	return data, nil
}

// Dir returns the image directory
func (s *ImageStore) Dir() string {
	return s.dir
}

// Files lists the stored image names in sorted order
func (s *ImageStore) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to list images")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of images known to the store
func (s *ImageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.known)
}
