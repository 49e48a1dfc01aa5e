package resource

import (
	"io/fs"
	"os"
)

// Source provides raw asset bytes by canonical path. Implementations report
// missing assets with an error matching fs.ErrNotExist.
type Source interface {
	ReadFile(path string) ([]byte, error)
}

// FSSource reads assets from an fs.FS.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource returns a Source backed by fsys.
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// NewDirSource returns a Source rooted at the directory dir.
func NewDirSource(dir string) *FSSource {
	return &FSSource{fsys: os.DirFS(dir)}
}

// ReadFile implements Source.
func (s *FSSource) ReadFile(path string) ([]byte, error) {
	return fs.ReadFile(s.fsys, path)
}

// FS returns the underlying file system.
func (s *FSSource) FS() fs.FS {
	return s.fsys
}
