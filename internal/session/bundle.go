package session

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aalhour/ddstoch/internal/compression"
)

// BundleName returns the bundle file name for codec, e.g. bundle.tar.zst.
func BundleName(codec compression.Type) string {
	return "bundle.tar" + codec.Extension()
}

// writeBundle archives summary.json, the reference deltas and every found
// configuration directory into <workdir>/bundle.tar<ext>.
func (s *Session) writeBundle(codec compression.Type) (path string, err error) {
	path = filepath.Join(s.workdir, BundleName(codec))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create bundle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	cw, err := compression.NewWriter(codec, f)
	if err != nil {
		return "", err
	}
	tw := tar.NewWriter(cw)

	if err := addFile(tw, filepath.Join(s.workdir, SummaryFile), SummaryFile); err != nil {
		return "", err
	}
	if err := addFile(tw, s.DeltaFile(), RefDirName+"/"+s.deltaFileName()); err != nil {
		return "", err
	}
	for _, found := range s.found {
		if err := addDir(tw, filepath.Join(s.workdir, found.Digest), found.Name); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("close bundle archive: %w", err)
	}
	if err := cw.Close(); err != nil {
		return "", fmt.Errorf("close bundle codec: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename bundle: %w", err)
	}
	return path, nil
}

func addFile(tw *tar.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	_, err = io.Copy(tw, in)
	return err
}

func addDir(tw *tar.Writer, src, name string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		entry := filepath.ToSlash(filepath.Join(name, rel))
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = entry + "/"
			return tw.WriteHeader(hdr)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addFile(tw, path, entry)
	})
}

// ListBundle returns the entry names of a bundle written by Finish.
func ListBundle(path string, codec compression.Type) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cr, err := compression.NewReader(codec, f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cr.Close() }()

	var names []string
	tr := tar.NewReader(cr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		names = append(names, hdr.Name)
	}
}
