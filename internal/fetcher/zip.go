package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to the destination
// directory. Shapefile bundles need every sidecar (.dbf, .shx, .prj) next to
// the .shp, so extraction is always whole-archive. Returns the list of
// extracted file paths; directory entries are created but not listed.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		destPath, err := entryPath(destDir, f.Name)
		if err != nil {
			return extracted, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return extracted, eris.Wrapf(err, "zip: create directory %s", f.Name)
			}
			continue
		}

		if err := writeZIPEntry(f, destPath); err != nil {
			return extracted, err
		}
		extracted = append(extracted, destPath)
	}

	return extracted, nil
}

// entryPath resolves an archive member name under destDir, rejecting names
// that would escape it.
func entryPath(destDir, name string) (string, error) {
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
	}
	return destPath, nil
}

// writeZIPEntry streams one archive member to disk, keeping its mode bits.
func writeZIPEntry(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return eris.Wrapf(err, "zip: create parent directory for %s", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", f.Name)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrapf(err, "zip: write %s", f.Name)
	}
	return nil
}

// findByExt returns the first path whose extension matches one of exts
// (case-insensitive). Archives from GIS portals bury the payload under
// arbitrary folder names, so match on extension rather than position.
func findByExt(paths []string, exts ...string) (string, bool) {
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		for _, want := range exts {
			if ext == want {
				return p, true
			}
		}
	}
	return "", false
}
