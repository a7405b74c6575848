// Package classpath resolves a fully qualified internal class name (e.g.
// "java/lang/String") to raw class file bytes across an ordered list of
// sources, per spec §4.2 / §6. It knows nothing about class file contents;
// it hands raw bytes to callers, which typically pipe them into
// package classfile.
package classpath

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrClassNotFound is returned (wrapped) when no source in the ClassPath
// has an entry for the requested class.
var ErrClassNotFound = errors.New("class not found")

// Source is one entry of a ClassPath: a directory tree or a ZIP/JAR
// archive, searched by "<internal-name>.class" per spec §6.
type Source interface {
	// Lookup returns the raw bytes for internalName, or ErrClassNotFound
	// (possibly wrapped) if this source has no such entry.
	Lookup(internalName string) ([]byte, error)
	// String names the source for diagnostics (a path).
	String() string
}

// ClassPath is an ordered list of sources; first match wins.
type ClassPath struct {
	sources []Source
}

// New builds a ClassPath from sources in priority order.
func New(sources ...Source) *ClassPath {
	return &ClassPath{sources: sources}
}

// Lookup searches each source in order and returns the first hit.
func (cp *ClassPath) Lookup(internalName string) ([]byte, Source, error) {
	var lastErr error
	for _, src := range cp.sources {
		data, err := src.Lookup(internalName)
		if err == nil {
			return data, src, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, nil, errors.Wrapf(lastErr, "looking up %s", internalName)
	}
	return nil, nil, errors.Wrapf(ErrClassNotFound, "%s in %d source(s)", internalName, len(cp.sources))
}

// Sources returns the configured sources, in lookup order.
func (cp *ClassPath) Sources() []Source {
	return cp.sources
}

// ParseSourceList splits an OS-style path list ("dir1:dir2:lib.jar" on
// Unix, "dir1;dir2;lib.jar" on Windows-style CLIs) into individual entries,
// opening each as a DirSource or ZipSource as appropriate. Separator is
// passed explicitly so callers can honor os.PathListSeparator.
func ParseSourceList(list string, separator rune) ([]Source, error) {
	if list == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(list, func(r rune) bool { return r == separator })
	sources := make([]Source, 0, len(parts))
	for _, p := range parts {
		src, err := Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "opening classpath entry %q", p)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// Open picks DirSource or ZipSource based on the entry's extension/kind.
func Open(path string) (Source, error) {
	if strings.HasSuffix(path, ".jar") || strings.HasSuffix(path, ".zip") {
		return NewZipSource(path)
	}
	return NewDirSource(path), nil
}
