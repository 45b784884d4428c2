// Package archive packs build logs into compressed tarballs so CI systems can keep them after the
// build directory is gone.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// newCompressor picks the compression from dest's extension: ".br" selects brotli, everything
// else xz.
func newCompressor(dest string, w io.Writer) (io.WriteCloser, error) {
	if strings.HasSuffix(dest, ".br") {
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	}

	xzWriter, err := xz.NewWriter(w)
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize xz compression")
	}
	return xzWriter, nil
}

// PackDir writes every regular file below dir into a .tar.xz (or .tar.br) archive at dest. Entry
// names are relative to dir's parent so the archive unpacks into a directory named like dir.
// Returns the number of packed files.
func PackDir(dest, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to check %s", dir)
	}
	if !info.IsDir() {
		return 0, eris.Errorf("%s is not a directory", dir)
	}

	handle, err := os.Create(dest)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to create %s", dest)
	}
	defer handle.Close()

	compressor, err := newCompressor(dest, handle)
	if err != nil {
		return 0, err
	}

	archive := tar.NewWriter(compressor)
	base := filepath.Dir(dir)
	count := 0

	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !fi.IsDir() && !fi.Mode().IsRegular() {
			// sockets, symlinks and friends are never part of test logs
			return nil
		}

		name, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return eris.Wrapf(err, "failed to build header for %s", path)
		}
		header.Name = filepath.ToSlash(name)
		if fi.IsDir() {
			header.Name += "/"
		}

		err = archive.WriteHeader(header)
		if err != nil {
			return eris.Wrapf(err, "failed to write header for %s", path)
		}

		if fi.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", path)
		}
		defer f.Close()

		_, err = io.Copy(archive, f)
		if err != nil {
			return eris.Wrapf(err, "failed to pack %s", path)
		}

		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	err = archive.Close()
	if err != nil {
		return count, eris.Wrap(err, "failed to finish tar stream")
	}

	err = compressor.Close()
	if err != nil {
		return count, eris.Wrap(err, "failed to finish compressed stream")
	}

	return count, handle.Close()
}
