package transcript

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// WriteOutput writes data to path on fs, creating parent directories. A
// ".gz" suffix gzip-compresses the output.
func WriteOutput(fs afero.Fs, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	if err := writeMaybeCompressed(f, path, data); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}

func writeMaybeCompressed(w io.Writer, path string, data []byte) error {
	if !strings.HasSuffix(path, ".gz") {
		_, err := w.Write(data)
		return err
	}

	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	zw.Name = strings.TrimSuffix(filepath.Base(path), ".gz")
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadOutput reads a file written by WriteOutput, decompressing ".gz" files.
func ReadOutput(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	return data, errors.Wrapf(err, "reading %s", path)
}
