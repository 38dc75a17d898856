// Package snapshot reads pre-fetched page snapshots from a directory laid out
// as {dir}/{ns}/{sha1(prefixed title)[:2]}/{page id}.json.
package snapshot

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ppiankov/wikimirror/internal/log"
)

// Article is one snapshot record in the enterprise dump schema
type Article struct {
	Identifier   int64       `json:"identifier"`
	Name         string      `json:"name"`
	URL          string      `json:"url,omitempty"`
	DateModified string      `json:"date_modified"`
	Namespace    Namespace   `json:"namespace"`
	InLanguage   Language    `json:"in_language"`
	ArticleBody  ArticleBody `json:"article_body"`
	Version      Version     `json:"version"`
}

// Namespace identifies the article namespace
type Namespace struct {
	Identifier int `json:"identifier"`
}

// Language identifies the article language
type Language struct {
	Identifier string `json:"identifier"`
}

// ArticleBody carries rendered and source text
type ArticleBody struct {
	HTML     string `json:"html"`
	Wikitext string `json:"wikitext"`
}

// Version describes the snapshotted revision
type Version struct {
	Identifier  int64    `json:"identifier"`
	Comment     *string  `json:"comment,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsMinorEdit bool     `json:"is_minor_edit,omitempty"`
	Editor      Editor   `json:"editor"`
	Size        Size     `json:"size"`
}

// Editor is the revision author
type Editor struct {
	Identifier int64  `json:"identifier"`
	Name       string `json:"name"`
}

// Size is the revision size with its unit
type Size struct {
	Value    int64  `json:"value"`
	UnitText string `json:"unit_text"`
}

// Store reads and writes snapshot records
type Store struct {
	fs     afero.Fs
	dir    string
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir. An empty dir disables the store.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{
		fs:     fs,
		dir:    dir,
		logger: log.WithComponent("snapshot"),
	}
}

// Enabled reports whether a snapshot directory is configured
func (s *Store) Enabled() bool {
	return s != nil && s.dir != ""
}

// Path returns the file holding the snapshot of a page
func Path(dir string, ns int, prefixedText string, pageID int64) string {
	sum := sha1.Sum([]byte(prefixedText))
	shard := hex.EncodeToString(sum[:])[:2]
	return filepath.Join(dir, strconv.Itoa(ns), shard, strconv.FormatInt(pageID, 10)+".json")
}

// Load returns the snapshot of a page. Missing and corrupt files are misses.
func (s *Store) Load(ns int, prefixedText string, pageID int64) (*Article, bool) {
	if !s.Enabled() || pageID <= 0 {
		return nil, false
	}

	path := Path(s.dir, ns, prefixedText, pageID)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, false
	}

	var article Article
	if err := json.Unmarshal(data, &article); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("corrupt snapshot record")
		return nil, false
	}
	return &article, true
}

// Save writes a snapshot record under its own name and identifier
func (s *Store) Save(article *Article) error {
	if !s.Enabled() {
		return fmt.Errorf("snapshot directory not configured")
	}

	path := Path(s.dir, article.Namespace.Identifier, article.Name, article.Identifier)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Import reads newline-delimited article records (as found in enterprise
// dump archives) and saves each one. Undecodable lines are skipped.
func (s *Store) Import(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var article Article
		if err := json.Unmarshal(line, &article); err != nil {
			s.logger.Warn().Err(err).Int("line", count+1).Msg("skipping undecodable record")
			continue
		}
		if article.Identifier <= 0 || article.Name == "" {
			continue
		}
		if err := s.Save(&article); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read records: %w", err)
	}
	return count, nil
}
