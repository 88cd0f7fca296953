package promo

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipLines(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	_, err := w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeCodeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, gzipLines(t, lines...), 0o600))
	return path
}

func TestCodeFilter_ReadCodes(t *testing.T) {
	f := NewCodeFilter(100)
	require.NoError(t, f.ReadCodes(context.Background(), bytes.NewReader(gzipLines(t, "save10", "", " HAPPYHRS "))))

	assert.Equal(t, uint64(2), f.Len())
	assert.True(t, f.MayContain("SAVE10"))
	assert.True(t, f.MayContain("happyhrs"))
}

func TestCodeFilter_ReadCodesNotGzip(t *testing.T) {
	err := NewCodeFilter(10).ReadCodes(context.Background(), strings.NewReader("SAVE10\n"))
	require.Error(t, err)
}

func TestLoadCodeFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeCodeFile(t, dir, "codes1.gz", "SAVE10", "OVER9000")
	b := writeCodeFile(t, dir, "codes2.gz", "GNULINUX")

	f, err := LoadCodeFiles(context.Background(), 1000, a, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Len())
	for _, code := range []string{"SAVE10", "OVER9000", "GNULINUX"} {
		assert.True(t, f.MayContain(code), code)
	}

	_, err = LoadCodeFiles(context.Background(), 1000, a, filepath.Join(dir, "missing.gz"))
	require.Error(t, err)
}

func TestFilteredRepository(t *testing.T) {
	repo := &mockRepository{promos: map[string]*Promo{
		"SAVE10": {Code: "SAVE10", Kind: KindPercentage, Value: d("10")},
	}}
	f := NewCodeFilter(100)
	f.Add("SAVE10")
	r := NewFilteredRepository(repo, f)

	p, err := r.FindByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", p.Code)
	assert.Equal(t, "SAVE10", repo.asked)

	repo.asked = ""
	_, err = r.FindByCode(context.Background(), "DEFINITELYNOT")
	require.ErrorIs(t, err, ErrInvalidPromo)
	assert.Empty(t, repo.asked, "filtered codes never reach the repository")
}
