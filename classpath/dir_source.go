package classpath

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DirSource looks up a class at root/<internal_name>.class on disk, per
// spec §6.
type DirSource struct {
	Root string
}

// NewDirSource returns a Source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Root: dir}
}

func (d *DirSource) Lookup(internalName string) ([]byte, error) {
	path := filepath.Join(d.Root, filepath.FromSlash(internalName)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrClassNotFound, "%s under %s", internalName, d.Root)
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

func (d *DirSource) String() string {
	return d.Root
}
