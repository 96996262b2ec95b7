package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestChaptersOrdersPagesNumerically(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "1"), "10.jpg", "2.jpg", "1.png", "9.webp")

	chapters, err := Chapters(root)
	require.NoError(t, err)
	require.Len(t, chapters, 1)

	ch := chapters[0]
	assert.Equal(t, uint(1), ch.Index)
	assert.Equal(t, "Chapter 1", ch.Name)

	var names []string
	for _, p := range ch.Pages {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"1.png", "2.jpg", "9.webp", "10.jpg"}, names)
	assert.Equal(t, ch.Pages[0], ch.Cover())
	assert.True(t, filepath.IsAbs(ch.Pages[0]))
}

func TestChaptersSortedByIndexAndSkipsOtherEntries(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "10"), "1.jpg")
	writeFiles(t, filepath.Join(root, "2"), "1.jpg")
	writeFiles(t, filepath.Join(root, "notes"), "1.jpg")
	writeFiles(t, filepath.Join(root, ".cache"), "1.jpg")
	writeFiles(t, root, "readme.txt", "3")

	chapters, err := Chapters(root)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, uint(2), chapters[0].Index)
	assert.Equal(t, uint(10), chapters[1].Index)
}

func TestChaptersArchiveNames(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "[0012]_Group_2_Chapter_12.5"), "1.jpg")
	writeFiles(t, filepath.Join(root, "[0003]_Chapter_3"), "1.jpg")

	chapters, err := Chapters(root)
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	assert.Equal(t, uint(3), chapters[0].Index)
	assert.Equal(t, "Chapter 3", chapters[0].Name)
	assert.Empty(t, chapters[0].Group)

	assert.Equal(t, uint(12), chapters[1].Index)
	assert.Equal(t, "Chapter 12.5", chapters[1].Name)
	assert.Equal(t, "2", chapters[1].Group)
}

func TestChaptersInfoOverridesName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "4")
	writeFiles(t, dir, "1.jpg", ".DS_Store")
	require.NoError(t, os.WriteFile(filepath.Join(dir, InfoFile), []byte(`{"name":"The Return"}`), 0o644))

	chapters, err := Chapters(root)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "The Return", chapters[0].Name)
	assert.Len(t, chapters[0].Pages, 1)
}

func TestChaptersErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
		kind  ErrorKind
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T, root string) { require.NoError(t, os.RemoveAll(root)) },
			kind:  DirectoryMissing,
		},
		{
			name:  "zero index",
			setup: func(t *testing.T, root string) { writeFiles(t, filepath.Join(root, "0"), "1.jpg") },
			kind:  MalformedChapterName,
		},
		{
			name: "index overflow",
			setup: func(t *testing.T, root string) {
				writeFiles(t, filepath.Join(root, "99999999999999999999999"), "1.jpg")
			},
			kind: MalformedChapterName,
		},
		{
			name:  "non numeric page",
			setup: func(t *testing.T, root string) { writeFiles(t, filepath.Join(root, "1"), "1.jpg", "cover.jpg") },
			kind:  MalformedPageName,
		},
		{
			name:  "duplicate page number",
			setup: func(t *testing.T, root string) { writeFiles(t, filepath.Join(root, "1"), "1.jpg", "01.png") },
			kind:  MalformedPageName,
		},
		{
			name:  "empty chapter",
			setup: func(t *testing.T, root string) { require.NoError(t, os.MkdirAll(filepath.Join(root, "1"), 0o755)) },
			kind:  EmptyChapter,
		},
		{
			name: "duplicate index",
			setup: func(t *testing.T, root string) {
				writeFiles(t, filepath.Join(root, "5"), "1.jpg")
				writeFiles(t, filepath.Join(root, "[0005]_Chapter_5"), "1.jpg")
			},
			kind: DuplicateChapterIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "chapters")
			require.NoError(t, os.MkdirAll(root, 0o755))
			tt.setup(t, root)

			chapters, err := Chapters(root)
			require.Error(t, err)
			assert.Nil(t, chapters)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
		})
	}
}
