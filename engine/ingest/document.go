package ingest

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/pkg/fn"
)

// UntitledSection is used when a page has no top-level heading.
const UntitledSection = "Untitled"

// Discover returns every markdown file under root, sorted for stable runs.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: discover %s: %w", root, err)
	}
	paths = fn.Filter(paths, isMarkdown)
	sort.Strings(paths)
	return paths, nil
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// ReadDocument loads and parses one page.
func ReadDocument(root, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	return ParseDocument(root, path, data)
}

// ParseDocument builds a Document from raw page bytes. Invalid UTF-8 is
// reported as domain.ErrMalformedDocument.
func ParseDocument(root, path string, data []byte) (domain.Document, error) {
	if !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("ingest: parse %s: %w: invalid utf-8", path, domain.ErrMalformedDocument)
	}

	id := DocumentID(root, path)
	text := string(data)
	return domain.Document{
		ID:      id,
		Path:    filepath.ToSlash(path),
		Text:    text,
		Title:   extractTitle(text),
		Chapter: domain.ClassifyPath(filepath.ToSlash(path)),
		URL:     "/" + strings.TrimPrefix(id, "/"),
	}, nil
}

// DocumentID is the page path relative to root, slash separated, without
// its extension.
func DocumentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// extractTitle returns the first "# " heading.
func extractTitle(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			if t := strings.TrimSpace(line[2:]); t != "" {
				return t
			}
		}
	}
	return UntitledSection
}
