package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/storage"
)

const (
	reportsDir = "reports"
	imagesDir  = "images"
)

// Input names what goes into a package
type Input struct {
	MarkdownPath string
	HTMLPath     string
	// ImagesDir is optional; every image file directly inside it is added
	ImagesDir string
}

// Manifest describes a written package
type Manifest struct {
	Path    string
	Entries []string
}

// RewriteLinks points every image link at the package's images/ entry as
// seen from reports/, where the Markdown is stored. Links into imagesDir on
// disk (as given or absolute) and bare images/ links are rewritten; links
// already in ../images/ form are kept.
func RewriteLinks(markdown []byte, imagesDirOnDisk string) []byte {
	target := []byte("](../" + imagesDir + "/")
	if imagesDirOnDisk != "" {
		dirs := []string{filepath.ToSlash(imagesDirOnDisk)}
		if abs, err := filepath.Abs(imagesDirOnDisk); err == nil {
			dirs = append(dirs, filepath.ToSlash(abs))
		}
		for _, d := range dirs {
			markdown = bytes.ReplaceAll(markdown, []byte("]("+strings.TrimSuffix(d, "/")+"/"), target)
		}
	}
	return bytes.ReplaceAll(markdown, []byte("]("+imagesDir+"/"), target)
}

// Create writes a zip at dest holding reports/<markdown>, reports/<html>
// and images/<name> for each image. The HTML is copied unchanged.
func Create(ctx context.Context, dest string, in Input, log logger.Logger) (*Manifest, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	md, err := os.ReadFile(in.MarkdownPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to read markdown report")
	}
	html, err := os.ReadFile(in.HTMLPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to read html report")
	}
	images, err := listImages(in.ImagesDir)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Path: dest}
	err = storage.WriteAtomic(dest, 0644, func(w io.Writer) error {
		zw := zip.NewWriter(w)

		mdName := path.Join(reportsDir, filepath.Base(in.MarkdownPath))
		if err := addBytes(zw, mdName, RewriteLinks(md, in.ImagesDir)); err != nil {
			return err
		}
		htmlName := path.Join(reportsDir, filepath.Base(in.HTMLPath))
		if err := addBytes(zw, htmlName, html); err != nil {
			return err
		}
		m.Entries = append(m.Entries, mdName, htmlName)

		for _, name := range images {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := path.Join(imagesDir, name)
			if err := addFile(zw, entry, filepath.Join(in.ImagesDir, name)); err != nil {
				return err
			}
			m.Entries = append(m.Entries, entry)
		}
		return zw.Close()
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to write archive")
	}

	log.InfoWithFields("Archive created", map[string]interface{}{
		"path":    dest,
		"entries": len(m.Entries),
		"images":  len(images),
	})
	return m, nil
}

func listImages(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeFileSystem, err, "failed to list images")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && storage.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// addFile stores an image without recompressing it
func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Store

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
