package catalog

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"ventas/internal/domain"
)

// FileCatalog reads product snapshots from JSON files under a directory. Each
// file holds either a single product or an array of products. It implements
// the catalog collaborator for offline and test setups where the commerce
// database is exported to files.
type FileCatalog struct {
	dir      string
	includes []string
	excludes []string
	now      func() time.Time
}

// NewFileCatalog creates a catalog over dir, selecting files by the given
// doublestar include/exclude patterns.
func NewFileCatalog(dir string, includes, excludes []string) *FileCatalog {
	if len(includes) == 0 {
		includes = []string{"**/*.json"}
	}
	return &FileCatalog{
		dir:      dir,
		includes: includes,
		excludes: excludes,
		now:      time.Now,
	}
}

// Products loads all active product snapshots with current prices resolved.
// Unreadable or malformed files are skipped and logged; the load succeeds
// with whatever parsed.
func (c *FileCatalog) Products(ctx context.Context) ([]domain.Product, error) {
	paths, err := c.matchFiles()
	if err != nil {
		return nil, err
	}

	today := c.now()
	var products []domain.Product
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := readSnapshot(path)
		if err != nil {
			slog.Warn("skipping unreadable catalog snapshot", "path", path, "error", err)
			continue
		}
		for _, p := range loaded {
			if !p.Active {
				continue
			}
			p.ResolveCurrentPrice(today)
			products = append(products, p)
		}
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// matchFiles walks the catalog dir collecting paths that match an include
// pattern and no exclude pattern.
func (c *FileCatalog) matchFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		included := false
		for _, pattern := range c.includes {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				included = true
				break
			}
		}
		if !included {
			return nil
		}
		for _, pattern := range c.excludes {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// readSnapshot parses one snapshot file holding a product or a product array.
func readSnapshot(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var many []domain.Product
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}

	var one domain.Product
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []domain.Product{one}, nil
}
