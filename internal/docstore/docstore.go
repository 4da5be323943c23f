// Package docstore reads and writes guide documents stored as front-matter
// text files on the local filesystem.
package docstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// Store lists, loads, backs up, and rewrites guide documents under a root
// directory. Writes are whole-file replacements; there is no partial-write
// state for a single document.
type Store struct {
	root      string
	backupDir string
}

// New creates a Store rooted at dir. Backups go to backupDir, or to
// <dir>/.backups when empty.
func New(dir, backupDir string) *Store {
	if backupDir == "" {
		backupDir = filepath.Join(dir, ".backups")
	}
	return &Store{root: dir, backupDir: backupDir}
}

// List returns document paths under the root matching the glob pattern
// (applied to the base name; "" matches every .md file), sorted, capped at
// maxFiles when maxFiles > 0.
func (s *Store) List(pattern string, maxFiles int) ([]string, error) {
	if pattern == "" {
		pattern = "*.md"
	}

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Never descend into the backup directory.
			if path == s.backupDir {
				return filepath.SkipDir
			}
			return nil
		}
		ok, matchErr := filepath.Match(pattern, d.Name())
		if matchErr != nil {
			return eris.Wrapf(matchErr, "docstore: bad pattern %q", pattern)
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: list %s", s.root)
	}

	sort.Strings(paths)
	if maxFiles > 0 && len(paths) > maxFiles {
		paths = paths[:maxFiles]
	}
	return paths, nil
}

// Load reads and parses one document. A malformed front-matter header is
// logged and tolerated: the header bytes are still preserved for writes.
func (s *Store) Load(path string) (model.GuideDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.GuideDocument{}, eris.Wrapf(err, "docstore: read %s", path)
	}

	id := s.docID(path)
	doc, parseErr := model.ParseDocument(id, path, string(raw))
	if parseErr != nil {
		zap.L().Warn("docstore: frontmatter not parseable, preserving verbatim",
			zap.String("doc", id),
			zap.Error(parseErr),
		)
	}
	return doc, nil
}

// Backup copies the document's current file into the backup directory under
// a name unique to this document and timestamp. The source file is never
// touched. Returns the backup path.
func (s *Store) Backup(path string, ts time.Time) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "docstore: read for backup %s", path)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "docstore: create backup dir %s", s.backupDir)
	}

	// The name is derived from the root-relative ID, not the base name, so
	// same-named documents in different subdirectories cannot collide.
	id := s.docID(path)
	stem := strings.ReplaceAll(strings.TrimSuffix(id, filepath.Ext(id)), "/", "__")
	name := stem + "." + ts.UTC().Format("20060102T150405") + filepath.Ext(id)
	dst := filepath.Join(s.backupDir, name)

	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return "", eris.Wrapf(err, "docstore: write backup %s", dst)
	}
	return dst, nil
}

// Save rewrites the document file: preserved header bytes followed by the
// new body. Encoding is untouched (bytes in, bytes out).
func (s *Store) Save(doc model.GuideDocument, body string) error {
	if err := os.WriteFile(doc.Path, []byte(doc.Render(body)), 0o644); err != nil {
		return eris.Wrapf(err, "docstore: write %s", doc.Path)
	}
	return nil
}

// docID is the root-relative path, used as the document's stable identifier.
func (s *Store) docID(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
