package upload

import (
	"errors"
	"io/fs"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"geminikit/internal/core"
)

// FileSystem opens local files for reading.
type FileSystem interface {
	Open(name string) (fs.File, error)
}

// OSFileSystem reads from the host filesystem.
type OSFileSystem struct{}

// Open opens the named file read-only.
func (OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// Info is what the upload needs to know about a local file before any request is made.
type Info struct {
	Size     int64
	MimeType string
}

// Inspector determines the size and MIME type of a local file.
type Inspector interface {
	Inspect(path string) (Info, error)
}

// FSInspector stats a file and sniffs its content to find the MIME type.
type FSInspector struct {
	FS FileSystem
}

// Inspect returns the file's size and detected MIME type.
// The MIME type is taken from the content, not the extension.
func (i FSInspector) Inspect(path string) (Info, error) {
	fsys := i.FS
	if fsys == nil {
		fsys = OSFileSystem{}
	}

	f, err := openForRead(fsys, path)
	if err != nil {
		return Info{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	st, err := f.Stat()
	if err != nil {
		return Info{}, core.NewFileUnreadableError("unable to determine file size", err)
	}
	if !st.Mode().IsRegular() {
		return Info{}, core.NewFileUnreadableError("not a regular file: "+path, nil)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return Info{}, core.NewFileUnreadableError("unable to determine MIME type", err)
	}
	mimeType := core.BaseMediaType(mt.String())
	if mimeType == "" {
		return Info{}, core.NewFileUnreadableError("unable to determine MIME type", nil)
	}

	return Info{Size: st.Size(), MimeType: mimeType}, nil
}

func openForRead(fsys FileSystem, path string) (fs.File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewFileNotFoundError(path, err)
		}
		return nil, core.NewFileUnreadableError("failed to open file for reading", err)
	}
	return f, nil
}
