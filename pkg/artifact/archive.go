// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datawire/pkgbuild/pkg/buildplan"
	"github.com/datawire/pkgbuild/pkg/manifest"
	"github.com/datawire/pkgbuild/pkg/python/pep425"
	"github.com/datawire/pkgbuild/pkg/reproducible"
)

// Generator is the value written to the WHEEL file's "Generator:" field.
const Generator = "pkgbuild"

var reFilenameUnsafe = regexp.MustCompile(`[-_.]+`)

// FilenameSafeName normalizes a package name for use in a filename or dist-info directory name:
// lowercase, with runs of "-_." collapsed to a single "_". Per §6, this differs from the
// display/canonical form (runs collapsed to "-") that dependency.NormalizeName produces.
func FilenameSafeName(name string) string {
	return reFilenameUnsafe.ReplaceAllString(strings.ToLower(name), "_")
}

// filenameVersion returns pkg's version as it appears in filenames and dist-info directory names:
// the normalized public form with any local-segment "+" escaped to "_".
func filenameVersion(pkg manifest.Package) string {
	return strings.ReplaceAll(pkg.Version.String(), "+", "_")
}

// DistInfoDirName returns the "<name>-<version>.dist-info" directory name for pkg, used both
// inside emitted archives and as the directory prepare_metadata_for_build_wheel writes into.
func DistInfoDirName(pkg manifest.Package) string {
	return fmt.Sprintf("%s-%s.dist-info", FilenameSafeName(pkg.Name), filenameVersion(pkg))
}

// SdistFilename returns the "<normalized_name>-<version>.tar.gz" filename for pkg.
func SdistFilename(pkg manifest.Package) string {
	return fmt.Sprintf("%s-%s.tar.gz", FilenameSafeName(pkg.Name), filenameVersion(pkg))
}

// WheelFilename returns the "<name>-<version>-<python_tag>-<abi_tag>-<platform_tag>.whl"
// filename for pkg built for tag.
func WheelFilename(pkg manifest.Package, tag pep425.Tag) string {
	return fmt.Sprintf("%s-%s-%s.whl", FilenameSafeName(pkg.Name), filenameVersion(pkg), tag.String())
}

// DefaultTag is the compatibility tag for a pure-Python package with no native extensions.
var DefaultTag = pep425.Tag{Python: "py3", ABI: "none", Platform: "any"}

// recordRow is a single RECORD entry, per §4.7: archive_path, "sha256=<b64>", size.
type recordRow struct {
	path string
	hash string
	size int64
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256=" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func renderRecord(rows []recordRow, recordArchivePath string) string {
	sort.Slice(rows, func(i, j int) bool { return rows[i].path < rows[j].path })
	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, r := range rows {
		_ = w.Write([]string{r.path, r.hash, strconv.FormatInt(r.size, 10)})
	}
	_ = w.Write([]string{recordArchivePath, "", ""})
	w.Flush()
	return b.String()
}

func clampedTime() time.Time {
	return reproducible.Now()
}

// BuildSdist writes a gzipped tar archive named per SdistFilename to w, per §4.7: top directory
// "<name>-<version>/", the declared sdist files plus a generated PKG-INFO, uid=gid=0, empty
// owner/group names, mode 0o644 for files and 0o755 for directories, sorted lexicographically.
func BuildSdist(w io.Writer, pkg manifest.Package, plan buildplan.Plan) error {
	topdir := fmt.Sprintf("%s-%s", FilenameSafeName(pkg.Name), filenameVersion(pkg))
	clamp := clampedTime()

	gz := gzip.NewWriter(w)
	gz.ModTime = clamp
	tw := tar.NewWriter(gz)

	entries := append([]buildplan.Entry(nil), plan.SdistFiles...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ArchivePath < entries[j].ArchivePath })

	dirsWritten := map[string]bool{}
	writeDirs := func(archivePath string) error {
		dir := path.Dir(archivePath)
		var dirs []string
		for dir != "." && dir != "/" {
			dirs = append(dirs, dir)
			dir = path.Dir(dir)
		}
		for i := len(dirs) - 1; i >= 0; i-- {
			d := dirs[i]
			if dirsWritten[d] {
				continue
			}
			dirsWritten[d] = true
			if err := tw.WriteHeader(&tar.Header{
				Name:     d + "/",
				Typeflag: tar.TypeDir,
				Mode:     0o755,
				ModTime:  clamp,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	for _, e := range entries {
		archivePath := path.Join(topdir, e.ArchivePath)
		if err := writeDirs(archivePath); err != nil {
			return err
		}
		data, err := os.ReadFile(e.SourcePath)
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:     archivePath,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  clamp,
		}); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}

	pkgInfo := []byte(RenderMetadata(pkg))
	pkgInfoPath := path.Join(topdir, "PKG-INFO")
	if err := writeDirs(pkgInfoPath); err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     pkgInfoPath,
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(pkgInfo)),
		ModTime:  clamp,
	}); err != nil {
		return err
	}
	if _, err := tw.Write(pkgInfo); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// DistInfoFiles renders the METADATA, WHEEL, and (if the package declares entry points)
// entry_points.txt content that belongs in a dist-info directory, keyed by filename.
func DistInfoFiles(pkg manifest.Package, generator, tagStr string, rootIsPurelib bool) map[string][]byte {
	files := map[string][]byte{
		"METADATA": []byte(RenderMetadata(pkg)),
		"WHEEL":    []byte(RenderWheelMetadata(generator, tagStr, rootIsPurelib)),
	}
	if entryPoints := RenderEntryPoints(pkg); entryPoints != "" {
		files["entry_points.txt"] = []byte(entryPoints)
	}
	return files
}

// BuildWheel writes a zip archive named per WheelFilename to w, per §4.7: all wheel_files plus a
// "<name>-<version>.dist-info/" directory with METADATA, WHEEL, entry_points.txt, and RECORD.
// Determinism: fixed DOS timestamp derived from SOURCE_DATE_EPOCH, external_attr mode 0o644,
// DEFLATE at a fixed compression level.
//
// distInfoOverride supplies dist-info file content (keyed by "METADATA", "WHEEL",
// "entry_points.txt") carried over from a prior prepare_metadata_for_build_wheel call; any file
// not present in it is rendered fresh from pkg. Pass nil to always render from scratch.
func BuildWheel(w io.Writer, pkg manifest.Package, plan buildplan.Plan, tag pep425.Tag, rootIsPurelib bool, distInfoOverride map[string][]byte) error {
	clamp := clampedTime()
	distInfo := DistInfoDirName(pkg)

	zw := zip.NewWriter(w)

	var rows []recordRow
	writeEntry := func(archivePath string, data []byte) error {
		fh := &zip.FileHeader{
			Name:     archivePath,
			Method:   zip.Deflate,
			Modified: clamp,
		}
		fh.SetMode(0o644)
		fw, err := zw.CreateHeader(fh)
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
		rows = append(rows, recordRow{path: archivePath, hash: hashBytes(data), size: int64(len(data))})
		return nil
	}

	entries := append([]buildplan.Entry(nil), plan.WheelFiles...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ArchivePath < entries[j].ArchivePath })
	for _, e := range entries {
		data, err := os.ReadFile(e.SourcePath)
		if err != nil {
			return err
		}
		if err := writeEntry(e.ArchivePath, data); err != nil {
			return err
		}
	}

	licensePaths := licenseArchivePaths(pkg, distInfo)
	for archivePath, data := range licensePaths {
		if err := writeEntry(archivePath, data); err != nil {
			return err
		}
	}

	distInfoFiles := DistInfoFiles(pkg, Generator, tag.String(), rootIsPurelib)
	for _, name := range []string{"METADATA", "WHEEL", "entry_points.txt"} {
		data, ok := distInfoOverride[name]
		if !ok {
			data, ok = distInfoFiles[name]
		}
		if !ok {
			continue
		}
		if err := writeEntry(path.Join(distInfo, name), data); err != nil {
			return err
		}
	}

	recordPath := path.Join(distInfo, "RECORD")
	record := renderRecord(rows, recordPath)
	fh := &zip.FileHeader{Name: recordPath, Method: zip.Deflate, Modified: clamp}
	fh.SetMode(0o644)
	fw, err := zw.CreateHeader(fh)
	if err != nil {
		return err
	}
	if _, err := fw.Write([]byte(record)); err != nil {
		return err
	}

	return zw.Close()
}

// BuildEditableWheel writes a wheel whose payload is a single top-level ".pth" file containing
// sourceRoot, making the project's packages importable from their original location rather than
// shipping copies, plus the usual dist-info. plan.WheelFiles is ignored; an editable install's
// only installed artifact is the loader stub and the metadata it carries.
//
// distInfoOverride behaves as documented on BuildWheel.
func BuildEditableWheel(w io.Writer, pkg manifest.Package, plan buildplan.Plan, tag pep425.Tag, pthContent string, distInfoOverride map[string][]byte) error {
	_ = plan
	clamp := clampedTime()
	distInfo := DistInfoDirName(pkg)

	zw := zip.NewWriter(w)

	var rows []recordRow
	writeEntry := func(archivePath string, data []byte) error {
		fh := &zip.FileHeader{
			Name:     archivePath,
			Method:   zip.Deflate,
			Modified: clamp,
		}
		fh.SetMode(0o644)
		fw, err := zw.CreateHeader(fh)
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
		rows = append(rows, recordRow{path: archivePath, hash: hashBytes(data), size: int64(len(data))})
		return nil
	}

	pthName := fmt.Sprintf("__editable__.%s.pth", FilenameSafeName(pkg.Name))
	if err := writeEntry(pthName, []byte(pthContent)); err != nil {
		return err
	}
	distInfoFiles := DistInfoFiles(pkg, Generator, tag.String(), true)
	for _, name := range []string{"METADATA", "WHEEL", "entry_points.txt"} {
		data, ok := distInfoOverride[name]
		if !ok {
			data, ok = distInfoFiles[name]
		}
		if !ok {
			continue
		}
		if err := writeEntry(path.Join(distInfo, name), data); err != nil {
			return err
		}
	}

	recordPath := path.Join(distInfo, "RECORD")
	record := renderRecord(rows, recordPath)
	fh := &zip.FileHeader{Name: recordPath, Method: zip.Deflate, Modified: clamp}
	fh.SetMode(0o644)
	fw, err := zw.CreateHeader(fh)
	if err != nil {
		return err
	}
	if _, err := fw.Write([]byte(record)); err != nil {
		return err
	}

	return zw.Close()
}

// licenseArchivePaths resolves license file references into a map of dist-info-relative archive
// path to file content, for LICENSE(S) files placed under "<dist-info>/licenses/" per §4.6 rule 4.
func licenseArchivePaths(pkg manifest.Package, distInfo string) map[string][]byte {
	out := map[string][]byte{}
	if pkg.Metadata.License.File == "" {
		return out
	}
	data, err := os.ReadFile(pkg.Metadata.License.File)
	if err != nil {
		return out
	}
	name := path.Base(filepathToSlash(pkg.Metadata.License.File))
	out[path.Join(distInfo, "licenses", name)] = data
	return out
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
