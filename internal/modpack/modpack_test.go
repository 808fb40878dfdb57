package modpack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/handler"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func writeJar(t *testing.T, root, rel string, entries map[string]string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "config/ftbquests/quests/chapters/ch1.snbt", `{ title: "Getting Started" }`)
	writeFile(t, root, "kubejs/client_scripts/tooltips.js", `item.displayName("Magic Wand")`)
	writeFile(t, root, "kubejs/assets/pack/lang/en_us.json", `{"item.pack.wand": "Magic Wand"}`)
	writeFile(t, root, "logs/kubejs/client.js", `item.displayName("ignored")`)
	writeFile(t, root, "out/resourcepack/assets/pack/lang/en_us.json", `{}`)
	writeFile(t, root, "readme.txt", "hello")
	writeJar(t, root, "mods/foo-1.2.jar", map[string]string{
		"assets/foo/lang/en_us.json":  `{"block.foo.ore": "Foo Ore"}`,
		"assets/foo/lang/ko_kr.json":  `{"block.foo.ore": "푸 광석"}`,
		"data/foo/recipes/en_us.json": `{}`,
		"assets/foo/textures/a.png":   "png",
	})
	writeFile(t, root, "mods/broken.jar", "not a zip")
	return root
}

func TestScan(t *testing.T) {
	root := fixture(t)
	s := &Scanner{Registry: handler.Default("en_us"), Jars: true, Exclude: []string{"out"}}

	files, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.Rel)
	}
	assert.Equal(t, []string{
		"config/ftbquests/quests/chapters/ch1.snbt",
		"kubejs/assets/pack/lang/en_us.json",
		"kubejs/client_scripts/tooltips.js",
		"mods/foo-1.2.jar!/assets/foo/lang/en_us.json",
	}, rels)

	counts := Counts(files)
	assert.Equal(t, 1, counts[internal.FileTypeFTBQuests])
	assert.Equal(t, 1, counts[internal.FileTypeKubeJS])
	assert.Equal(t, 2, counts[internal.FileTypeLangJSON])

	jar := files[3]
	assert.True(t, jar.InJar())
	assert.Equal(t, "mods/foo-1.2.jar", jar.Jar)
	assert.Equal(t, "assets/foo/lang/en_us.json", jar.Entry)
}

func TestScan_WithoutJars(t *testing.T) {
	root := fixture(t)
	s := &Scanner{Registry: handler.Default("en_us"), Exclude: []string{"out/"}}

	files, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, f.InJar(), f.Rel)
	}
	assert.Len(t, files, 3)
}

func TestScan_MissingRoot(t *testing.T) {
	s := &Scanner{Registry: handler.Default("en_us")}
	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Scanner{Registry: handler.Default("en_us")}
	_, err := s.Scan(ctx, fixture(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRead(t *testing.T) {
	root := fixture(t)
	s := &Scanner{Registry: handler.Default("en_us"), Jars: true, Exclude: []string{"out"}}
	files, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	data, err := Read(root, files[0])
	require.NoError(t, err)
	assert.Equal(t, `{ title: "Getting Started" }`, string(data))

	data, err = Read(root, files[3])
	require.NoError(t, err)
	assert.Equal(t, `{"block.foo.ore": "Foo Ore"}`, string(data))

	_, err = Read(root, File{Rel: "mods/foo-1.2.jar!/x", Jar: "mods/foo-1.2.jar", Entry: "x"})
	assert.Error(t, err)
}
