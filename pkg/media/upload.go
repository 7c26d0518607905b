package media

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Upload is a file received from a client.
type Upload struct {
	// Filename is the client supplied name. Only its base is ever used.
	Filename string

	Size int64

	open func() (io.ReadCloser, error)
}

// Open returns the upload's content.
func (u Upload) Open() (io.ReadCloser, error) {
	return u.open()
}

// FromFileHeader wraps a multipart file.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes wraps in-memory content.
func FromBytes(name string, data []byte) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath wraps a local file.
func FromPath(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
