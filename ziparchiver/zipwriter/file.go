package zipwriter

import (
	"archive/zip"
	"errors"
	"io"
	"os"
)

// NewTempZipFile returns a zip Writer helper backed by a temporary file in dir,
// created upon first entry. An empty dir means the OS temp dir.
func NewTempZipFile(dir, pattern string) *ZipFile {
	z := &ZipFile{}
	z.lazyOpenFunc = func() (io.Writer, error) {
		f, err := os.CreateTemp(dir, pattern)
		if err != nil {
			return nil, err
		}
		z.path = f.Name()
		z.closer = f
		return f, nil
	}
	z.delFunc = func() error {
		return os.Remove(z.path)
	}
	return z
}

// NewStreamZipFile returns a zip Writer helper writing to w. Closing it
// finishes the archive but does not close w.
func NewStreamZipFile(w io.Writer) *ZipFile {
	return &ZipFile{
		lazyOpenFunc: func() (io.Writer, error) { return w, nil },
		delFunc:      func() error { return nil },
	}
}

type ZipFile struct {
	init         bool
	opened       bool
	path         string
	closer       io.Closer
	writer       *zip.Writer
	entries      int
	lazyOpenFunc func() (io.Writer, error)
	delFunc      func() error
}

// Path of the backing file. Empty for streams and before the first entry.
func (z *ZipFile) Path() string {
	return z.path
}

func (z *ZipFile) Entries() int {
	return z.entries
}

// Close the writer and the backing file if it was opened.
func (z *ZipFile) Close() error {
	if !z.init {
		return nil
	}
	defer func() {
		z.init = false
	}()
	err := z.writer.Close()
	if z.closer != nil {
		err = errors.Join(err, z.closer.Close())
	}
	return err
}

// Delete the backing file if it was opened. The ZipFile must be closed first.
func (z *ZipFile) Delete() error {
	if !z.opened {
		return nil
	}
	z.opened = false
	return z.delFunc()
}

// CreateHeader creates a new zip entry in the zip file.
func (z *ZipFile) CreateHeader(fh *zip.FileHeader) (io.Writer, error) {
	if !z.init {
		out, err := z.lazyOpenFunc()
		if err != nil {
			return nil, err
		}
		z.writer = zip.NewWriter(out)
		z.init = true
		z.opened = true
	}

	w, err := z.writer.CreateHeader(fh)
	if err != nil {
		return nil, err
	}
	z.entries++
	return w, nil
}
