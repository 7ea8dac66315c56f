package envfile

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	content := `# database
DB_URL=postgres://u:p@host/db?sslmode=disable

  PORT = 3000
QUOTED="hello world"
SINGLE='it''s'
EMPTY=
export EXPORTED=yes
EQUALS=a=b=c
not a pair
=novalue
HALF="open
DUP=1
DUP=2
WIN=crlf` + "\r\n"

	got := Parse(content)
	want := map[string]string{
		"DB_URL":   "postgres://u:p@host/db?sslmode=disable",
		"PORT":     "3000",
		"QUOTED":   "hello world",
		"SINGLE":   "it''s",
		"EMPTY":    "",
		"EXPORTED": "yes",
		"EQUALS":   "a=b=c",
		"HALF":     `"open`,
		"DUP":      "2",
		"WIN":      "crlf",
	}
	assert.Equal(t, want, got)
}

func TestParsePairs_KeepsOrder(t *testing.T) {
	pairs := ParsePairs("B=2\nA=1\nB=3\n")
	assert.Equal(t, []Pair{{"B", "2"}, {"A", "1"}, {"B", "3"}}, pairs)
}

func TestRender_SortedAndRoundTrips(t *testing.T) {
	vars := map[string]string{"ZED": "last", "ALPHA": "first", "URL": "http://x/?a=b", "EMPTY": ""}
	out := Render(vars)

	assert.Equal(t, "ALPHA=first\nEMPTY=\nURL=http://x/?a=b\nZED=last\n", out)
	assert.Equal(t, vars, Parse(out))
	assert.Equal(t, "", Render(map[string]string{}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(map[string]string{"A": "1", "B": "2"}, map[string]string{"B": "2", "A": "1"}))
	assert.True(t, Equal(nil, map[string]string{}))
	assert.False(t, Equal(map[string]string{"A": "1"}, map[string]string{"A": "2"}))
	assert.False(t, Equal(map[string]string{"A": "1"}, map[string]string{"B": "1"}))
	assert.False(t, Equal(map[string]string{"A": ""}, map[string]string{}))
}

func TestRead(t *testing.T) {
	fs := afero.NewMemMapFs()

	st, err := Read(fs, "/work/.env")
	require.NoError(t, err)
	assert.False(t, st.Exists)

	require.NoError(t, afero.WriteFile(fs, "/work/.env", []byte("A=1\n"), 0o644))
	st, err = Read(fs, "/work/.env")
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.False(t, st.ModTime.IsZero())
	assert.Equal(t, map[string]string{"A": "1"}, st.Vars)

	require.NoError(t, fs.MkdirAll("/work/dir.env", 0o755))
	_, err = Read(fs, "/work/dir.env")
	assert.Error(t, err)
}

func TestWriteAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))

	require.NoError(t, WriteAtomic(fs, "/work/.env", []byte("A=1\n")))
	data, err := afero.ReadFile(fs, "/work/.env")
	require.NoError(t, err)
	assert.Equal(t, "A=1\n", string(data))
	info, err := fs.Stat("/work/.env")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// existing permissions survive a rewrite
	require.NoError(t, fs.Chmod("/work/.env", 0o644))
	require.NoError(t, WriteAtomic(fs, "/work/.env", []byte("B=2\n")))
	data, err = afero.ReadFile(fs, "/work/.env")
	require.NoError(t, err)
	assert.Equal(t, "B=2\n", string(data))
	info, err = fs.Stat("/work/.env")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// no temp files left behind
	entries, err := afero.ReadDir(fs, "/work")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".env", entries[0].Name())
}

func TestWriteAtomic_FailureLeavesTargetUntouched(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/work/.env", []byte("OLD=1\n"), 0o600))
	ro := afero.NewReadOnlyFs(base)

	err := WriteAtomic(ro, "/work/.env", []byte("NEW=1\n"))
	require.Error(t, err)

	data, err := afero.ReadFile(base, "/work/.env")
	require.NoError(t, err)
	assert.Equal(t, "OLD=1\n", string(data))
}
