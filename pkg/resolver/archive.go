package resolver

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// writeTar writes the contents of dir as a tar stream. Entry names are
// relative to dir with forward slashes, so snapshots restore identically on
// any platform.
func writeTar(w io.Writer, dir string) error {
	tw := tar.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}

		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close() // nolint: errcheck

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	return tw.Close()
}

// extractTar restores a tar stream into dir. Entries that would escape dir
// are rejected.
func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("resolver: tar entry %q escapes target directory", hdr.Name)
		}

		path := filepath.Join(dir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, fs.FileMode(hdr.Mode)&fs.ModePerm); err != nil { // nolint: gosec
				return err
			}
		case tar.TypeSymlink:
			if strings.HasPrefix(hdr.Linkname, "/") || !filepath.IsLocal(hdr.Linkname) {
				return fmt.Errorf("resolver: tar symlink %q escapes target directory", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return err
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.FileMode(hdr.Mode)&fs.ModePerm) // nolint: gosec
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil { // nolint: gosec
				f.Close() // nolint: errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// Other entry types have no place in a bare repository snapshot.
		}
	}
}
