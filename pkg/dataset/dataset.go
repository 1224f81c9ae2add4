package dataset

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/storage"
)

// Version is bumped when the dump layout changes
const Version = 1

// Dump is the JSON record of one crawl
type Dump struct {
	Version   int               `json:"version"`
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name"`
	StartDate string            `json:"start_date,omitempty"`
	EndDate   string            `json:"end_date,omitempty"`
	Keywords  []string          `json:"keywords,omitempty"`
	CrawlTime time.Time         `json:"crawl_time"`
	Total     int               `json:"total_count"`
	Stats     models.CrawlStats `json:"stats"`
	Posts     []*models.Post    `json:"weibos"`
}

// New builds a dump for posts collected with p
func New(p models.Params, posts []*models.Post, stats models.CrawlStats, crawled time.Time) *Dump {
	if posts == nil {
		posts = []*models.Post{}
	}
	return &Dump{
		Version:   Version,
		UserID:    p.UserID,
		UserName:  p.UserName,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Keywords:  p.Keywords,
		CrawlTime: crawled,
		Total:     len(posts),
		Stats:     stats,
		Posts:     posts,
	}
}

// Store writes dumps into one directory
type Store struct {
	dir    string
	logger logger.Logger
}

// NewStore creates dir if needed
func NewStore(dir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to create data directory")
	}
	return &Store{dir: dir, logger: log}, nil
}

// Path returns where the dump named base lives
func (s *Store) Path(base string) string {
	return filepath.Join(s.dir, base+".json")
}

// Save writes d as {dir}/{base}.json, replacing any previous dump atomically
func (s *Store) Save(base string, d *Dump) (string, error) {
	path := s.Path(base)
	err := storage.WriteAtomic(path, 0644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(d)
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to save dump")
	}

	s.logger.DebugWithFields("Dump saved", map[string]interface{}{
		"user_id": d.UserID,
		"posts":   d.Total,
		"path":    path,
	})
	return path, nil
}

// Load reads a dump. A missing file returns nil, nil.
func (s *Store) Load(base string) (*Dump, error) {
	f, err := os.Open(s.Path(base))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to open dump")
	}
	defer f.Close()

	var d Dump
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDecode, err, "failed to decode dump")
	}
	return &d, nil
}

// Exists reports whether a dump named base is present
func (s *Store) Exists(base string) bool {
	_, err := os.Stat(s.Path(base))
	return err == nil
}
