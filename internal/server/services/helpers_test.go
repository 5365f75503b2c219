package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/storage"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	files    *memFiles
	backends *memBackends
	catalog  *fakeCatalog
	rm       *fakeRepoManager
	local    *memAdapter
	s3       *memAdapter
	registry *storage.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		files:    newMemFiles(),
		backends: newMemBackends(),
		catalog: &fakeCatalog{
			descriptors: map[string]*models.AccessDescriptor{},
			enrolled:    map[string]bool{},
		},
		local: newMemAdapter(storage.KindLocal),
		s3:    newMemAdapter(storage.KindS3),
	}
	e.rm = &fakeRepoManager{files: e.files, catalog: e.catalog, backends: e.backends}

	reg, err := storage.NewRegistryFrom(storage.KindLocal, e.local, e.s3)
	require.NoError(t, err)
	e.registry = reg
	return e
}

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// noisyPNG compresses poorly, so any downscaled JPEG of it is smaller.
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rnd.Intn(256)), G: uint8(rnd.Intn(256)), B: uint8(rnd.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
