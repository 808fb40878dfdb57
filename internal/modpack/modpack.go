// Package modpack discovers translatable files in a modpack directory,
// including language files packed inside mod jars.
package modpack

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/handler"
)

// JarSeparator joins a jar path and an entry name in a virtual path:
// mods/foo.jar!/assets/foo/lang/en_us.json.
const JarSeparator = "!/"

// MaxFileSize bounds the files read into memory.
const MaxFileSize = 64 << 20

var skipDirs = map[string]bool{
	".git":          true,
	"logs":          true,
	"crash-reports": true,
	"saves":         true,
	"screenshots":   true,
	"backups":       true,
	"journeymap":    true,
}

// Jar entries under these directories never hold display text.
var skipJarDirs = []string{
	"/recipes/", "/tags/", "/loot_tables/", "/advancements/",
	"/structures/", "/worldgen/", "/dimension/", "/dimension_type/",
}

// File is one discovered file. Rel is pack-relative with forward slashes.
type File struct {
	Rel     string
	Jar     string
	Entry   string
	Size    int64
	Handler handler.Handler
}

func (f File) InJar() bool { return f.Jar != "" }

// Scanner walks a modpack and matches files against a handler registry.
type Scanner struct {
	Registry *handler.Registry
	// Jars enables reading mods/*.jar archives.
	Jars bool
	// Exclude lists pack-relative directories not to descend into, such
	// as an output directory placed inside the pack.
	Exclude []string
	Logger  *zap.Logger
}

func (s *Scanner) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Scan returns the claimed files sorted by Rel. Unreadable jars are logged
// and skipped; a missing root is an error.
func (s *Scanner) Scan(ctx context.Context, root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("modpack: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("modpack: %s is not a directory", root)
	}

	exclude := make(map[string]bool, len(s.Exclude))
	for _, e := range s.Exclude {
		exclude[strings.Trim(filepath.ToSlash(e), "/")] = true
	}

	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log().Warn("skipping unreadable path", zap.String("path", p), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (skipDirs[strings.ToLower(d.Name())] || exclude[rel]) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if s.Jars && isModJar(rel) {
			found, err := s.scanJar(p, rel)
			if err != nil {
				s.log().Warn("skipping unreadable jar", zap.String("jar", rel), zap.Error(err))
				return nil
			}
			files = append(files, found...)
			return nil
		}

		h, ok := s.Registry.Lookup(rel)
		if !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, File{Rel: rel, Size: fi.Size(), Handler: h})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	s.log().Info("scan finished", zap.String("root", root), zap.Int("files", len(files)))
	return files, nil
}

func isModJar(rel string) bool {
	return path.Dir(rel) == "mods" && strings.EqualFold(path.Ext(rel), ".jar")
}

func (s *Scanner) scanJar(abs, rel string) ([]File, error) {
	zr, err := zip.OpenReader(abs)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var files []File
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !jarCandidate(zf.Name) {
			continue
		}
		virtual := rel + JarSeparator + zf.Name
		h, ok := s.Registry.Lookup(virtual)
		if !ok {
			continue
		}
		files = append(files, File{
			Rel:     virtual,
			Jar:     rel,
			Entry:   zf.Name,
			Size:    int64(zf.UncompressedSize64),
			Handler: h,
		})
	}
	return files, nil
}

func jarCandidate(name string) bool {
	lower := "/" + strings.ToLower(name)
	if !strings.HasPrefix(lower, "/assets/") && !strings.HasPrefix(lower, "/data/") {
		return false
	}
	for _, d := range skipJarDirs {
		if strings.Contains(lower, d) {
			return false
		}
	}
	return true
}

// Read returns the bytes of f, from the directory tree or from its jar.
func Read(root string, f File) ([]byte, error) {
	if f.Size > MaxFileSize {
		return nil, &internal.ParseError{Path: f.Rel, Err: fmt.Errorf("file exceeds %d bytes", MaxFileSize)}
	}
	if !f.InJar() {
		return os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Rel)))
	}

	zr, err := zip.OpenReader(filepath.Join(root, filepath.FromSlash(f.Jar)))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.Name != f.Entry {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, MaxFileSize))
	}
	return nil, fmt.Errorf("%s: entry %s not found", f.Jar, f.Entry)
}

// Counts groups files by handler name.
func Counts(files []File) map[internal.FileType]int {
	out := map[internal.FileType]int{}
	for _, f := range files {
		out[f.Handler.Name()]++
	}
	return out
}
