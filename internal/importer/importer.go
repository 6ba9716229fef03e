// Package importer reads entry files into journal submissions.
//
// Files dropped into <root>/import/ are picked up by Scan, posted, and moved
// to import/processed/. Every file imported gets its own batch ID, stamped on
// each entry it produces.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cleared-dev/bookkeeper/internal/journal"
)

// Parser converts an entry file into submissions.
type Parser interface {
	Parse(r io.Reader) ([]journal.Submission, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ForFile picks a parser from a file name of the form <format>_anything.csv,
// falling back to the journal format.
func (r *Registry) ForFile(name string) Parser {
	base := strings.ToLower(filepath.Base(name))
	if i := strings.IndexAny(base, "_."); i > 0 {
		if p := r.Get(base[:i]); p != nil {
			return p
		}
	}
	return r.Get(FormatJournal)
}

// DefaultRegistry returns a registry with the built-in journal parser.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(JournalParser{})
	return r
}

// FormatJournal names the native entry CSV format.
const FormatJournal = "journal"

// JournalParser reads the native entry CSV (see journal.ReadSubmissions).
type JournalParser struct{}

// Format returns the parser name.
func (JournalParser) Format() string { return FormatJournal }

// Parse reads entry CSV rows into submissions.
func (JournalParser) Parse(r io.Reader) ([]journal.Submission, error) {
	return journal.ReadSubmissions(r)
}

// Poster posts a batch of submissions. *journal.Service implements it.
type Poster interface {
	PostAll(ctx context.Context, subs []journal.Submission) ([]string, error)
}

// Result reports one imported file.
type Result struct {
	File     string   `json:"file"`
	Format   string   `json:"format"`
	BatchID  string   `json:"batch_id"`
	EntryIDs []string `json:"entry_ids"`
}

// ImportFile parses path with p and posts every submission under a fresh
// batch ID. The file posts as a whole: on failure nothing from it is in the
// ledger, so the corrected file can be imported again without doubling
// entries.
func ImportFile(ctx context.Context, poster Poster, p Parser, path string) (Result, error) {
	res := Result{File: filepath.Base(path), Format: p.Format(), BatchID: uuid.NewString()}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	subs, err := p.Parse(f)
	if err != nil {
		return res, fmt.Errorf("parsing %s: %w", res.File, err)
	}
	for i := range subs {
		subs[i].BatchID = res.BatchID
	}

	res.EntryIDs, err = poster.PostAll(ctx, subs)
	if err != nil {
		return res, fmt.Errorf("posting %s: %w", res.File, err)
	}
	return res, nil
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// InboxDir returns <root>/import.
func InboxDir(root string) string {
	return filepath.Join(root, importDir)
}

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := InboxDir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
