// Package loader reads a directory of resumes into stored documents.
package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/resumatch/internal/extract"
	"github.com/seanblong/resumatch/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Loader extracts every supported file under Root.
type Loader struct {
	Root       string
	Walker     FileSystemWalker
	FileReader FileReader
	Workers    int
}

// Result holds the documents that loaded and the files that did not.
// Documents are sorted by name.
type Result struct {
	Documents []models.StoredDocument
	Failed    []models.Exclusion
}

// New creates a Loader for root backed by the real file system.
func New(root string) *Loader {
	return &Loader{
		Root:       root,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// NewWithDependencies creates a Loader with custom dependencies for testing
func NewWithDependencies(root string, walker FileSystemWalker, reader FileReader) *Loader {
	return &Loader{Root: root, Walker: walker, FileReader: reader}
}

// ReadDocument reads and extracts a single file. The document is named by its
// path relative to root.
func ReadDocument(reader FileReader, root, path string) (models.StoredDocument, error) {
	b, err := reader.ReadFile(path)
	if err != nil {
		return models.StoredDocument{}, err
	}
	ct := extract.ContentType(path, "")
	text, err := extract.Text(b, ct)
	if err != nil {
		return models.StoredDocument{}, err
	}
	return models.StoredDocument{
		Name:        rel(root, path),
		ContentType: ct,
		Text:        text,
		Data:        b,
	}, nil
}

// Load walks Root and extracts files concurrently.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	numWorkers := l.Workers
	if numWorkers <= 0 {
		numWorkers = min(runtime.NumCPU(), 8)
	}

	log.Info().Str("root", l.Root).Int("workers", numWorkers).Msg("loading documents")

	paths := make(chan string, numWorkers*2)
	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				doc, err := ReadDocument(l.FileReader, l.Root, path)
				mu.Lock()
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("failed to load document")
					res.Failed = append(res.Failed, models.Exclusion{CandidateID: rel(l.Root, path), Reason: reason(err)})
				} else {
					res.Documents = append(res.Documents, doc)
				}
				mu.Unlock()
			}
		}()
	}

	walkErr := l.Walker.Walk(l.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			// Mock walkers pass a nil Dirent for plain files.
			if de != nil && de.IsDir() {
				if path != l.Root && skipDir(filepath.Base(path)) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if shouldSkip(l.Root, path) {
				return nil
			}
			select {
			case paths <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(paths)
	wg.Wait()

	if walkErr != nil {
		return Result{}, walkErr
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sort.Slice(res.Documents, func(i, j int) bool { return res.Documents[i].Name < res.Documents[j].Name })
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].CandidateID < res.Failed[j].CandidateID })
	log.Info().Int("loaded", len(res.Documents)).Int("failed", len(res.Failed)).Msg("documents loaded")
	return res, nil
}

var skippedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"__macosx":     true,
}

func skipDir(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, ".") || skippedDirs[name]
}

// shouldSkip returns true if the file at path should not be loaded.
func shouldSkip(root, path string) bool {
	parts := strings.Split(filepath.ToSlash(rel(root, path)), "/")
	for _, dir := range parts[:len(parts)-1] {
		if skipDir(dir) {
			return true
		}
	}
	base := parts[len(parts)-1]
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return true
	}
	return !extract.Supported(base)
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}

func reason(err error) string {
	if errors.Is(err, extract.ErrNoText) {
		return "no text found"
	}
	return err.Error()
}
