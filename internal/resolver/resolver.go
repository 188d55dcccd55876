// Package resolver implements the filesystem-backed include capability: it
// maps #include arguments to on-disk files using the configured search
// directories and caches loaded contents for reuse across translation units.
package resolver

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/spp/internal/pp"
	"github.com/standardbeagle/spp/pkg/pathutil"
)

// notFoundMarker is stored in the resolution cache for names that exhausted
// every search directory, so repeat misses skip the disk entirely.
const notFoundMarker = ""

// cachedFile is one loaded include: resolved path, content, and an xxhash64
// stamp for cheap change detection in watch mode.
type cachedFile struct {
	path string
	data []byte
	hash uint64
}

// Filesystem resolves LOCAL ("...") and SYSTEM (<...>) includes against the
// local disk.
//
// Search order, per spelling:
//
//	LOCAL:  directory of the including file, then include dirs, then system dirs
//	SYSTEM: include dirs, then system dirs
//
// A Filesystem may back several concurrently running preprocessor instances;
// all state is mutex-guarded.
type Filesystem struct {
	includeDirs []string
	systemDirs  []string

	mu       sync.RWMutex
	files    map[string]*cachedFile // resolved path → content
	resolved map[string]string      // search key → resolved path, or notFoundMarker
}

// New creates a resolver over the given search directories.
func New(includeDirs, systemDirs []string) *Filesystem {
	return &Filesystem{
		includeDirs: includeDirs,
		systemDirs:  systemDirs,
		files:       make(map[string]*cachedFile),
		resolved:    make(map[string]string),
	}
}

// Open implements pp.Resolver. The returned bytes are owned by the cache and
// must be treated as read-only; Close is a no-op for them.
func (fs *Filesystem) Open(kind pp.IncludeKind, filename, parentFilename string) ([]byte, error) {
	name := pathutil.NormalizeInclude(filename)
	if name == "" {
		return nil, NewNotFoundError(filename, nil)
	}

	key := searchKey(kind, name, parentFilename)
	fs.mu.RLock()
	path, seen := fs.resolved[key]
	fs.mu.RUnlock()
	if seen {
		if path == notFoundMarker {
			return nil, NewNotFoundError(filename, nil)
		}
		if data, err := fs.loadFile(path); err == nil {
			return data, nil
		}
		// the cached resolution went stale; fall through to a fresh search
	}

	searched := make([]string, 0, 4)
	for _, dir := range fs.searchDirs(kind, parentFilename) {
		full := filepath.Join(dir, name)
		if filepath.IsAbs(name) {
			// an absolute include has exactly one candidate
			full = name
		}
		data, err := fs.loadFile(full)
		if err == nil {
			fs.mu.Lock()
			fs.resolved[key] = full
			fs.mu.Unlock()
			return data, nil
		}
		if !os.IsNotExist(underlying(err)) {
			return nil, err
		}
		searched = append(searched, dir)
		if filepath.IsAbs(name) {
			break
		}
	}

	fs.mu.Lock()
	fs.resolved[key] = notFoundMarker
	fs.mu.Unlock()
	return nil, NewNotFoundError(filename, searched)
}

// Close implements pp.Resolver. Loaded contents stay in the cache for the
// next translation unit; eviction happens through Invalidate.
func (fs *Filesystem) Close(source []byte) {}

// searchDirs enumerates candidate directories for one include spelling.
func (fs *Filesystem) searchDirs(kind pp.IncludeKind, parentFilename string) []string {
	dirs := make([]string, 0, 1+len(fs.includeDirs)+len(fs.systemDirs))
	if kind == pp.IncludeLocal {
		if parentFilename != "" {
			dirs = append(dirs, filepath.Dir(parentFilename))
		} else {
			dirs = append(dirs, ".")
		}
	}
	dirs = append(dirs, fs.includeDirs...)
	dirs = append(dirs, fs.systemDirs...)
	return dirs
}

// loadFile returns a file's bytes from the cache, reading and stamping it on
// first use.
func (fs *Filesystem) loadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	f := fs.files[path]
	fs.mu.RUnlock()
	if f != nil {
		return f.data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewFileError("read", path, err)
	}
	fs.mu.Lock()
	fs.files[path] = &cachedFile{path: path, data: data, hash: xxhash.Sum64(data)}
	fs.mu.Unlock()
	return data, nil
}

// TrackedFiles lists every resolved path currently cached. Watch mode
// watches these in addition to the root inputs.
func (fs *Filesystem) TrackedFiles() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	paths := make([]string, 0, len(fs.files))
	for path := range fs.files {
		paths = append(paths, path)
	}
	return paths
}

// Changed re-reads path and reports whether its content differs from the
// cached copy. Missing files count as changed.
func (fs *Filesystem) Changed(path string) bool {
	fs.mu.RLock()
	f := fs.files[path]
	fs.mu.RUnlock()
	if f == nil {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	return xxhash.Sum64(data) != f.hash
}

// Invalidate drops a cached file and any resolutions pointing at it, so the
// next Open re-reads the disk.
func (fs *Filesystem) Invalidate(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path)
	for key, resolved := range fs.resolved {
		if resolved == path {
			delete(fs.resolved, key)
		}
	}
}

func searchKey(kind pp.IncludeKind, name, parentFilename string) string {
	prefix := "q\x00"
	if kind == pp.IncludeSystem {
		// SYSTEM resolution ignores the including file, so one cache entry
		// serves every parent
		return "s\x00" + name
	}
	return prefix + filepath.Dir(parentFilename) + "\x00" + name
}

func underlying(err error) error {
	if fe, ok := err.(*FileError); ok {
		return fe.Underlying
	}
	return err
}
