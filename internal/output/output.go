// Package output writes a translated modpack: a resource pack tree for
// assets, an overrides tree for files that replace modpack files, patched
// copies of mod jars whose data files were translated, and the run artifacts
// next to them.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/klauspost/compress/zip"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
)

const (
	ResourcePackDir = "resourcepack"
	OverridesDir    = "overrides"
	JarModsDir      = "mods"

	DefaultPackFormat = 15
	DefaultPackName   = "translations"
)

const jarSeparator = "!/"

// Paths that cannot be loaded from a resource pack.
var overridePrefixes = []string{"kubejs/", "config/", "scripts/", "defaultconfigs/"}

type Config struct {
	Dir          string
	// Modpack is the modpack root that original jars are read from.
	Modpack      string
	PackName     string
	Description  string
	PackFormat   int
	SourceLocale string
	TargetLocale string
	// Zip also packs each tree into <Dir>/<PackName>.zip and
	// <Dir>/<PackName>_overrides.zip.
	Zip bool
}

// File is one rendered file to write. Rel is the pack-relative source path,
// possibly a jar virtual path.
type File struct {
	Rel  string
	Data []byte
}

// Written reports where a file went.
type Written struct {
	Rel  string
	Root string
	Path string
}

// Writer owns the output directory for one run. It is not safe for
// concurrent use.
type Writer struct {
	cfg       Config
	log       *zap.Logger
	resources int
	overrides int
	// jars holds translated data entries by jar path, then entry name.
	jars map[string]map[string][]byte
}

// New prepares cfg.Dir, replacing the trees a previous run left there. An
// unwritable directory is a *internal.FatalIOError.
func New(cfg Config, logger *zap.Logger) (*Writer, error) {
	if cfg.PackName == "" {
		cfg.PackName = DefaultPackName
	}
	if cfg.PackFormat == 0 {
		cfg.PackFormat = DefaultPackFormat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &internal.FatalIOError{Path: cfg.Dir, Err: err}
	}
	probe, err := os.CreateTemp(cfg.Dir, ".packtran-*")
	if err != nil {
		return nil, &internal.FatalIOError{Path: cfg.Dir, Err: err}
	}
	probe.Close()
	os.Remove(probe.Name())

	for _, d := range []string{ResourcePackDir, OverridesDir, JarModsDir} {
		if err := os.RemoveAll(filepath.Join(cfg.Dir, d)); err != nil {
			return nil, &internal.FatalIOError{Path: filepath.Join(cfg.Dir, d), Err: err}
		}
	}
	return &Writer{cfg: cfg, log: logger, jars: map[string]map[string][]byte{}}, nil
}

func (w *Writer) Dir() string { return w.cfg.Dir }

// Destination maps a source path to its output root and relative path. Jar
// entries outside assets/ cannot be overridden by a resource pack, so they
// map to JarModsDir as "<jar name>!/<entry>".
func (w *Writer) Destination(rel string) (root, out string) {
	jar, entry, inJar := strings.Cut(filepath.ToSlash(rel), jarSeparator)
	if !inJar {
		entry = jar
	}
	lower := strings.ToLower(entry)

	if !inJar && isOverride(lower) {
		return OverridesDir, w.localize(entry)
	}
	if i := assetsIndex(lower); i >= 0 {
		return ResourcePackDir, w.localize(entry[i:])
	}
	if inJar {
		return JarModsDir, path.Base(jar) + jarSeparator + w.localize(entry)
	}
	return OverridesDir, w.localize(entry)
}

func isOverride(lower string) bool {
	for _, p := range overridePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return strings.Contains("/"+lower, "/ftbquests/")
}

func assetsIndex(lower string) int {
	if strings.HasPrefix(lower, "assets/") {
		return 0
	}
	if i := strings.LastIndex(lower, "/assets/"); i >= 0 {
		return i + 1
	}
	return -1
}

// localize replaces the source locale in directory names and file stems.
func (w *Writer) localize(rel string) string {
	src := strings.ToLower(w.cfg.SourceLocale)
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		stem, ext := seg, ""
		if i == len(segs)-1 {
			ext = path.Ext(seg)
			stem = strings.TrimSuffix(seg, ext)
		}
		if strings.ToLower(stem) == src {
			segs[i] = matchCase(stem, w.cfg.TargetLocale) + ext
		}
	}
	return strings.Join(segs, "/")
}

// matchCase renders target in the style of like: en_US gives ko_KR.
func matchCase(like, target string) string {
	target = strings.ToLower(target)
	lang, region, ok := strings.Cut(like, "_")
	if !ok || region == "" || !unicode.IsUpper(rune(region[0])) {
		return target
	}
	tl, tr, _ := strings.Cut(target, "_")
	if lang != strings.ToLower(lang) {
		tl = strings.ToUpper(tl)
	}
	return tl + "_" + strings.ToUpper(tr)
}

// Write writes files to their destinations. Failures are per file and
// combined into the returned error; the files that did get written are
// reported either way.
func (w *Writer) Write(files []File) ([]Written, error) {
	var (
		written []Written
		errs    error
		staged  = map[string][]jarEntry{}
	)
	for _, f := range files {
		root, out := w.Destination(f.Rel)
		if root == JarModsDir {
			jar, _, _ := strings.Cut(filepath.ToSlash(f.Rel), jarSeparator)
			_, entry, _ := strings.Cut(out, jarSeparator)
			if w.jars[jar] == nil {
				w.jars[jar] = map[string][]byte{}
			}
			w.jars[jar][entry] = f.Data
			staged[jar] = append(staged[jar], jarEntry{rel: f.Rel, name: entry})
			continue
		}
		p := filepath.Join(w.cfg.Dir, root, filepath.FromSlash(out))
		if err := writeFile(p, f.Data); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", f.Rel, err))
			continue
		}
		if root == ResourcePackDir {
			w.resources++
		} else {
			w.overrides++
		}
		written = append(written, Written{Rel: f.Rel, Root: root, Path: p})
		w.log.Debug("wrote file", zap.String("source", f.Rel), zap.String("path", p))
	}

	jars := make([]string, 0, len(staged))
	for jar := range staged {
		jars = append(jars, jar)
	}
	sort.Strings(jars)
	for _, jar := range jars {
		p := filepath.Join(w.cfg.Dir, JarModsDir, path.Base(jar))
		if err := w.patchJar(jar, p); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("patch %s: %w", jar, err))
			for _, e := range staged[jar] {
				delete(w.jars[jar], e.name)
			}
			continue
		}
		for _, e := range staged[jar] {
			written = append(written, Written{Rel: e.rel, Root: JarModsDir, Path: p})
		}
		w.log.Debug("patched jar", zap.String("jar", jar), zap.Int("entries", len(staged[jar])), zap.String("path", p))
	}
	return written, errs
}

type jarEntry struct {
	rel  string
	name string
}

// patchJar copies the modpack jar at rel to dest, replacing or adding the
// translated entries staged for it. Unchanged entries are copied without
// recompression.
func (w *Writer) patchJar(rel, dest string) (err error) {
	zr, err := zip.OpenReader(filepath.Join(w.cfg.Modpack, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	entries := w.jars[rel]
	seen := make(map[string]bool, len(entries))
	zw := zip.NewWriter(f)
	for _, zf := range zr.File {
		data, ok := entries[zf.Name]
		if !ok {
			if err := zw.Copy(zf); err != nil {
				return multierr.Append(err, zw.Close())
			}
			continue
		}
		seen[zf.Name] = true
		hdr := &zip.FileHeader{Name: zf.Name, Method: zip.Deflate, Modified: zf.Modified}
		if err := writeEntry(zw, hdr, data); err != nil {
			return multierr.Append(err, zw.Close())
		}
	}

	added := make([]string, 0, len(entries))
	for name := range entries {
		if !seen[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		if err := writeEntry(zw, &zip.FileHeader{Name: name, Method: zip.Deflate}, entries[name]); err != nil {
			return multierr.Append(err, zw.Close())
		}
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, hdr *zip.FileHeader, data []byte) error {
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = dst.Write(data)
	return err
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// WriteJSON writes an indented JSON artifact into the output directory.
func (w *Writer) WriteJSON(name string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return w.WriteArtifact(name, buf.Bytes())
}

// WriteArtifact writes a run artifact such as a report into the output
// directory.
func (w *Writer) WriteArtifact(name string, data []byte) error {
	return writeFile(filepath.Join(w.cfg.Dir, name), data)
}

type packMeta struct {
	Pack struct {
		PackFormat  int    `json:"pack_format"`
		Description string `json:"description"`
	} `json:"pack"`
}

// Finish writes pack.mcmeta and the optional archives. It returns the
// archive paths it created.
func (w *Writer) Finish() ([]string, error) {
	var meta packMeta
	meta.Pack.PackFormat = w.cfg.PackFormat
	meta.Pack.Description = w.cfg.Description
	if meta.Pack.Description == "" {
		meta.Pack.Description = fmt.Sprintf("%s translation (%s)", w.cfg.PackName, w.cfg.TargetLocale)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(w.cfg.Dir, ResourcePackDir, "pack.mcmeta"), data); err != nil {
		return nil, &internal.FatalIOError{Path: w.cfg.Dir, Err: err}
	}
	if !w.cfg.Zip {
		return nil, nil
	}

	var archives []string
	if w.resources > 0 {
		p := filepath.Join(w.cfg.Dir, w.cfg.PackName+".zip")
		if err := zipDir(filepath.Join(w.cfg.Dir, ResourcePackDir), p); err != nil {
			return archives, err
		}
		archives = append(archives, p)
	}
	if w.overrides > 0 {
		p := filepath.Join(w.cfg.Dir, w.cfg.PackName+"_overrides.zip")
		if err := zipDir(filepath.Join(w.cfg.Dir, OverridesDir), p); err != nil {
			return archives, err
		}
		archives = append(archives, p)
	}
	w.log.Info("archives written", zap.Strings("paths", archives))
	return archives, nil
}

// Counts returns the number of files written to each tree.
func (w *Writer) Counts() (resources, overrides int) {
	return w.resources, w.overrides
}

func zipDir(dir, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		hdr := &zip.FileHeader{Name: filepath.ToSlash(rel), Method: zip.Deflate}
		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(dst, src)
		return err
	})
	return multierr.Combine(walkErr, zw.Close())
}
