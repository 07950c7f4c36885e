// Package seed imports knowls from a directory of Markdown files: the
// basename (minus .md) is the identifier, optional YAML frontmatter
// carries title and quality, the rest is content. Imports go through the
// regular save path so history, keywords, and change events all apply.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/calden/knowld/internal/checksum"
	"github.com/calden/knowld/internal/knowl"
	"github.com/calden/knowld/internal/service"
	"github.com/calden/knowld/internal/store"
)

// savedBy attributes seed imports in the edit history.
const savedBy = "seed"

// Importer syncs a seed directory into the store.
type Importer struct {
	svc    *service.Service
	db     *store.DB
	dir    string
	logger *slog.Logger
}

// New creates an Importer rooted at dir.
func New(svc *service.Service, db *store.DB, dir string, logger *slog.Logger) *Importer {
	return &Importer{svc: svc, db: db, dir: dir, logger: logger}
}

type frontmatter struct {
	Title   string `yaml:"title"`
	Quality string `yaml:"quality"`
}

// parseFile splits optional YAML frontmatter (between leading ---
// delimiters) from the content. Invalid YAML falls back to treating the
// whole file as content.
func parseFile(data []byte) (frontmatter, string) {
	const delim = "---"
	var fm frontmatter

	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return frontmatter{}, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// fileID maps a seed file path to its knowl identifier.
func fileID(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".md") {
		return "", false
	}
	id := strings.TrimSuffix(base, ".md")
	return id, knowl.ValidID(id)
}

// Sync walks the seed directory and imports new or changed files,
// skipping files whose checksum matches the last import. Removing a seed
// file only forgets its import record; it never deletes a knowl, since
// the stored copy may carry later edits.
func (im *Importer) Sync(ctx context.Context) error {
	known, err := im.db.SeedChecksums()
	if err != nil {
		return err
	}

	onDisk := make(map[string]struct{})
	err = filepath.WalkDir(im.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		id, ok := fileID(path)
		if !ok {
			return nil
		}
		onDisk[id] = struct{}{}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			im.logger.Warn("seed: read failed", slog.String("path", path), slog.String("error", readErr.Error()))
			return nil
		}
		sum := checksum.Sum(data)
		if known[id] == sum {
			return nil
		}
		if impErr := im.importFile(ctx, id, data, sum); impErr != nil {
			im.logger.Warn("seed: import failed", slog.String("id", id), slog.String("error", impErr.Error()))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed: walk %s: %w", im.dir, err)
	}

	for id := range known {
		if _, ok := onDisk[id]; !ok {
			if delErr := im.db.DeleteSeedChecksum(id); delErr != nil {
				im.logger.Warn("seed: forget failed", slog.String("id", id), slog.String("error", delErr.Error()))
			} else {
				im.logger.Debug("seed: forgot removed file", slog.String("id", id))
			}
		}
	}
	return nil
}

func (im *Importer) importFile(ctx context.Context, id string, data []byte, sum string) error {
	fm, body := parseFile(data)
	if fm.Quality != "" && !knowl.ValidQuality(fm.Quality) {
		return fmt.Errorf("seed: unknown quality %q", fm.Quality)
	}
	if _, err := im.svc.Save(ctx, id, fm.Title, body, fm.Quality, savedBy); err != nil {
		return err
	}
	if err := im.db.SetSeedChecksum(id, sum); err != nil {
		return err
	}
	im.logger.Info("seed: imported", slog.String("id", id))
	return nil
}
