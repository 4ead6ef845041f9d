package mockserver

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/cserve-project/cserve-test-harness/servicedef"
)

func blockImage(size, block int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			bx, by := x/block, y/block
			img.Set(x, y, color.RGBA{R: uint8(bx * 4), G: uint8(by * 4), B: uint8((bx + by) % 2 * 255), A: 255})
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if filepath.Ext(path) == ".jpg" {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	} else {
		require.NoError(t, tiff.Encode(&buf, img, nil))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644)) //nolint:gosec
}

func TestIIIFInfoForImage(t *testing.T) {
	config := makeTestConfig(t)
	writeImage(t, filepath.Join(config.ImgRoot, "test_01.tif"), image.NewRGBA(image.Rect(0, 0, 1200, 800)))
	h := newTestHandler(t, config)

	for _, path := range []string{"/iiif/test_01.tif", "/iiif/test_01.tif/info.json"} {
		rec := doGet(t, h, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var info servicedef.IIIFImageInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, servicedef.IIIFImageContext, info.Context)
		assert.Equal(t, "http://example.com/iiif/test_01.tif", info.ID)
		assert.Equal(t, "ImageService3", info.Type)
		assert.Equal(t, 1200, info.Width)
		assert.Equal(t, 800, info.Height)
		assert.Equal(t, []servicedef.IIIFSize{{Width: 600, Height: 400}, {Width: 300, Height: 200}}, info.Sizes)
		assert.Equal(t, servicedef.IIIFExtraFeatures, info.ExtraFeatures)
	}
}

func TestIIIFInfoForFile(t *testing.T) {
	h := newTestHandler(t, makeTestConfig(t))
	rec := doGet(t, h, "/iiif/test_allow.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info servicedef.IIIFFileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, servicedef.IIIFFileContext, info.Context)
	assert.Equal(t, int64(len("a,b\n1,2\n")), info.FileSize)
	assert.Contains(t, info.InternalMimeType, "text/")

	assert.Equal(t, http.StatusUnauthorized, doGet(t, h, "/iiif/test_deny.csv", nil).Code)
	assert.Equal(t, http.StatusNotFound, doGet(t, h, "/iiif/missing.tif", nil).Code)
}

func TestIIIFRestrictedImageIsCapped(t *testing.T) {
	config := makeTestConfig(t)
	writeImage(t, filepath.Join(config.ImgRoot, "RestrictLeaves.jpg"), blockImage(256, 8))
	writeImage(t, filepath.Join(config.ImgRoot, "Leaves.jpg"), blockImage(256, 8))
	h := newTestHandler(t, config)

	rec := doGet(t, h, "/iiif/RestrictLeaves.jpg/full/max/0/default.jpg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg, format, err := image.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, servicedef.IIIFRestrictedSize, cfg.Width)
	assert.Equal(t, servicedef.IIIFRestrictedSize, cfg.Height)

	rec = doGet(t, h, "/iiif/Leaves.jpg/full/max/0/default.jpg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg, _, err = image.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)
}

func TestIIIFRegionAndSize(t *testing.T) {
	config := makeTestConfig(t)
	writeImage(t, filepath.Join(config.ImgRoot, "pyramid.tif"), blockImage(1024, 8))
	h := newTestHandler(t, config)

	rec := doGet(t, h, "/iiif/pyramid.tif/0,0,512,512/256,256/0/default.tif", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/tiff", rec.Header().Get("Content-Type"))
	tile, err := tiff.Decode(rec.Body)
	require.NoError(t, err)
	expected := blockImage(256, 4)
	require.Equal(t, expected.Bounds().Size(), tile.Bounds().Size())
	for _, p := range []image.Point{{0, 0}, {5, 9}, {255, 255}, {128, 64}} {
		assert.Equal(t, expected.At(p.X, p.Y), color.RGBAModel.Convert(tile.At(p.X, p.Y)), "pixel %v", p)
	}

	rec = doGet(t, h, "/iiif/pyramid.tif/full/max/0/default.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, doGet(t, h, "/iiif/pyramid.tif/2000,0,10,10/max/0/default.tif", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, h, "/iiif/pyramid.tif/full/abc/0/default.tif", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, h, "/iiif/pyramid.tif/full/max/0/default.gif", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, h, "/iiif/test_allow.csv/full/100,/0/default.jpg", nil).Code)
}

func TestParseSize(t *testing.T) {
	for _, params := range []struct {
		size          string
		width, height int
	}{
		{"max", 400, 200},
		{"full", 400, 200},
		{"100,50", 100, 50},
		{"100,", 100, 50},
		{",50", 100, 50},
		{"!100,100", 100, 50},
	} {
		t.Run(params.size, func(t *testing.T) {
			w, h, err := parseSize(params.size, 400, 200)
			require.NoError(t, err)
			assert.Equal(t, params.width, w)
			assert.Equal(t, params.height, h)
		})
	}
	for _, bad := range []string{"", "0,0", "!100,", "a,b", "1,2,3"} {
		_, _, err := parseSize(bad, 400, 200)
		assert.ErrorIs(t, err, errBadIIIFParam, bad)
	}
}

func TestFitWithin(t *testing.T) {
	w, h := fitWithin(256, 256, 128)
	assert.Equal(t, []int{128, 128}, []int{w, h})
	w, h = fitWithin(400, 200, 128)
	assert.Equal(t, []int{128, 64}, []int{w, h})
	w, h = fitWithin(100, 50, 128)
	assert.Equal(t, []int{100, 50}, []int{w, h})
}
