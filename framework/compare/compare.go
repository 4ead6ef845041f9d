// Package compare checks resources downloaded from the server under test against reference
// fixture files, either byte for byte or pixel for pixel.
package compare

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/cserve-project/cserve-test-harness/framework/client"
)

const compareChunkSize = 64 * 1024

// Downloader fetches a server resource into a temporary file. *client.Client implements it.
type Downloader interface {
	Download(path, suffix string, options ...client.RequestOption) (string, error)
}

// Result describes the outcome of an image comparison.
type Result struct {
	Equal bool

	// DiffPixels is the number of pixels that differ. It is zero if the dimensions differ.
	DiffPixels int

	// DiffBounds is the smallest rectangle, in the coordinates of the reference image, that
	// contains every differing pixel. If the dimensions differ it is the reference image's bounds.
	DiffBounds image.Rectangle

	// SizeMismatch is true if the two images have different dimensions.
	SizeMismatch bool

	// DownloadedPath is the downloaded file. It is only set if the images were not equal, in which
	// case the file is left in place for inspection.
	DownloadedPath string
}

// Comparator compares server resources with local reference files.
type Comparator struct {
	downloader Downloader
}

// New creates a Comparator that uses downloader to fetch resources.
func New(downloader Downloader) *Comparator {
	return &Comparator{downloader: downloader}
}

// CompareBytes downloads remotePath and reports whether it is byte-identical to the file at
// referencePath. The downloaded file is deleted if it matched; otherwise it is kept and its path
// is returned.
func (c *Comparator) CompareBytes(
	remotePath, referencePath string,
	options ...client.RequestOption,
) (equal bool, downloadedPath string, err error) {
	downloaded, err := c.downloader.Download(remotePath, filepath.Ext(referencePath), options...)
	if err != nil {
		return false, "", err
	}
	equal, err = sameFileContents(downloaded, referencePath)
	if err != nil {
		return false, downloaded, err
	}
	if equal {
		_ = os.Remove(downloaded)
		return true, "", nil
	}
	return false, downloaded, nil
}

// CompareImages downloads remotePath and compares its pixels with the image at referencePath.
// Images that cannot be decoded produce a *client.DecodeError; images that decode but differ
// produce a Result whose Equal is false.
func (c *Comparator) CompareImages(
	remotePath, referencePath string,
	options ...client.RequestOption,
) (Result, error) {
	reference, err := decodeImageFile(referencePath)
	if err != nil {
		return Result{}, err
	}
	downloaded, err := c.downloader.Download(remotePath, filepath.Ext(referencePath), options...)
	if err != nil {
		return Result{}, err
	}
	actual, err := decodeImageFile(downloaded)
	if err != nil {
		return Result{DownloadedPath: downloaded}, err
	}
	result := DiffImages(reference, actual)
	if result.Equal {
		_ = os.Remove(downloaded)
	} else {
		result.DownloadedPath = downloaded
	}
	return result, nil
}

// DiffImages compares two images pixel by pixel in 16-bit RGBA space. Only dimensions matter, not
// the position of the bounds rectangles, and the color model is irrelevant as long as the
// converted values agree.
func DiffImages(reference, actual image.Image) Result {
	rb, ab := reference.Bounds(), actual.Bounds()
	if rb.Dx() != ab.Dx() || rb.Dy() != ab.Dy() {
		return Result{SizeMismatch: true, DiffBounds: rb}
	}
	var ret Result
	offset := ab.Min.Sub(rb.Min)
	for y := rb.Min.Y; y < rb.Max.Y; y++ {
		for x := rb.Min.X; x < rb.Max.X; x++ {
			r1, g1, b1, a1 := reference.At(x, y).RGBA()
			r2, g2, b2, a2 := actual.At(x+offset.X, y+offset.Y).RGBA()
			if r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2 {
				continue
			}
			ret.DiffPixels++
			ret.DiffBounds = ret.DiffBounds.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	ret.Equal = ret.DiffPixels == 0
	return ret
}

func (r Result) String() string {
	switch {
	case r.Equal:
		return "images are equal"
	case r.SizeMismatch:
		return fmt.Sprintf("image dimensions differ (expected %dx%d)", r.DiffBounds.Dx(), r.DiffBounds.Dy())
	default:
		return fmt.Sprintf("%d pixels differ within %s", r.DiffPixels, r.DiffBounds)
	}
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, &client.DecodeError{Source: path, Err: err}
	}
	return img, nil
}

func sameFileContents(path1, path2 string) (bool, error) {
	info1, err := os.Stat(path1)
	if err != nil {
		return false, err
	}
	info2, err := os.Stat(path2)
	if err != nil {
		return false, err
	}
	if info1.Size() != info2.Size() {
		return false, nil
	}
	f1, err := os.Open(path1)
	if err != nil {
		return false, err
	}
	defer f1.Close() //nolint:errcheck
	f2, err := os.Open(path2)
	if err != nil {
		return false, err
	}
	defer f2.Close() //nolint:errcheck

	buf1 := make([]byte, compareChunkSize)
	buf2 := make([]byte, compareChunkSize)
	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)
		if n1 != n2 || !bytes.Equal(buf1[:n1], buf2[:n2]) {
			return false, nil
		}
		if err1 != nil || err2 != nil {
			if isEOF(err1) && isEOF(err2) {
				return true, nil
			}
			if !isEOF(err1) {
				return false, err1
			}
			return false, err2
		}
	}
}

func isEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF //nolint:errorlint
}
