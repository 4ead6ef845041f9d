package mockserver

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/cserve-project/cserve-test-harness/servicedef"
)

// Reduced sizes listed in info.json stop once the shorter side would drop below this.
const minListedSize = 200

var errBadIIIFParam = errors.New("invalid IIIF parameter")

// imageRequest is the part of a IIIF image URL that the mock can act on.
type imageRequest struct {
	region string
	size   string
	format string
}

func (h *Handler) serveIIIFInfo(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	if isDenied(identifier) {
		writeError(w, http.StatusUnauthorized, "Unauthorized access")
		return
	}
	file, ok := h.imgRootFile(w, identifier)
	if !ok {
		return
	}
	id := "http://" + r.Host + "/" + h.config.IIIFPrefix + "/" + identifier
	w.Header().Set("Access-Control-Allow-Origin", "*")

	cfg, _, err := image.DecodeConfig(bytes.NewReader(file))
	if err != nil {
		writeJSON(w, http.StatusOK, servicedef.IIIFFileInfo{
			Context:          servicedef.IIIFFileContext,
			ID:               id,
			InternalMimeType: mimetype.Detect(file).String(),
			FileSize:         int64(len(file)),
		})
		return
	}
	writeJSON(w, http.StatusOK, servicedef.IIIFImageInfo{
		Context:          servicedef.IIIFImageContext,
		ID:               id,
		Type:             "ImageService3",
		Protocol:         servicedef.IIIFProtocol,
		Profile:          "level2",
		Width:            cfg.Width,
		Height:           cfg.Height,
		Sizes:            reducedSizes(cfg.Width, cfg.Height),
		ExtraFeatures:    servicedef.IIIFExtraFeatures,
		ExtraFormats:     []string{"tif", "jp2"},
		ExtraQualities:   []string{"color", "gray", "bitonal"},
		PreferredFormats: []string{"jpg", "tif", "jp2", "png"},
	})
}

func reducedSizes(width, height int) []servicedef.IIIFSize {
	ret := []servicedef.IIIFSize{}
	for w, h := width/2, height/2; min(w, h) >= minListedSize; w, h = w/2, h/2 {
		ret = append(ret, servicedef.IIIFSize{Width: w, Height: h})
	}
	return ret
}

// serveIIIFImage handles region and size; rotation and quality are accepted as given. A full,
// unrestricted request in the source file's own format returns the file unchanged.
func (h *Handler) serveIIIFImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identifier := vars["identifier"]
	if isDenied(identifier) {
		writeError(w, http.StatusUnauthorized, "Unauthorized access")
		return
	}
	req := imageRequest{region: vars["region"], size: vars["size"], format: vars["format"]}
	restricted := strings.Contains(strings.ToLower(identifier), "restrict")
	if !restricted && req.region == "full" && (req.size == "max" || req.size == "full") &&
		sameFormat(path.Ext(identifier), req.format) {
		h.serveFile(w, r, h.config.ImgRoot, identifier)
		return
	}

	file, ok := h.imgRootFile(w, identifier)
	if !ok {
		return
	}
	src, _, err := image.Decode(bytes.NewReader(file))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cannot decode image: "+err.Error())
		return
	}
	out, err := req.apply(src, restricted)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	contentType, err := encodeImage(&buf, out, req.format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) imgRootFile(w http.ResponseWriter, identifier string) ([]byte, bool) {
	clean := path.Clean("/" + identifier)
	data, err := os.ReadFile(filepath.Join(h.config.ImgRoot, filepath.FromSlash(clean)))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found: "+clean)
		return nil, false
	}
	return data, true
}

// Names containing "deny" are refused and names containing "restrict" are served at most
// IIIFRestrictedSize pixels wide and high, standing in for the real server's access-control
// script.
func isDenied(identifier string) bool {
	return strings.Contains(strings.ToLower(identifier), "deny")
}

func sameFormat(ext, format string) bool {
	normalize := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "."))
		switch s {
		case "jpeg":
			return "jpg"
		case "tiff":
			return "tif"
		}
		return s
	}
	return normalize(ext) == normalize(format)
}

func (req imageRequest) apply(src image.Image, restricted bool) (image.Image, error) {
	region, err := parseRegion(req.region, src.Bounds())
	if err != nil {
		return nil, err
	}
	width, height, err := parseSize(req.size, region.Dx(), region.Dy())
	if err != nil {
		return nil, err
	}
	if restricted {
		width, height = fitWithin(width, height, servicedef.IIIFRestrictedSize)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, region, draw.Src, nil)
	return dst, nil
}

func parseRegion(region string, bounds image.Rectangle) (image.Rectangle, error) {
	switch region {
	case "full":
		return bounds, nil
	case "square":
		side := min(bounds.Dx(), bounds.Dy())
		x, y := (bounds.Dx()-side)/2, (bounds.Dy()-side)/2
		return image.Rect(x, y, x+side, y+side).Add(bounds.Min), nil
	}
	n, err := parseInts(region, 4)
	if err != nil || n[2] <= 0 || n[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: region %q", errBadIIIFParam, region)
	}
	r := image.Rect(n[0], n[1], n[0]+n[2], n[1]+n[3]).Add(bounds.Min).Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: region %q is outside the image", errBadIIIFParam, region)
	}
	return r, nil
}

// parseSize supports "max", "full", "w,", ",h", "w,h" and "!w,h".
func parseSize(size string, width, height int) (int, int, error) {
	if size == "max" || size == "full" {
		return width, height, nil
	}
	confined := strings.HasPrefix(size, "!")
	parts := strings.Split(strings.TrimPrefix(size, "!"), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: size %q", errBadIIIFParam, size)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	switch {
	case errW == nil && errH == nil && w > 0 && h > 0:
		if confined {
			scale := min(float64(w)/float64(width), float64(h)/float64(height))
			return max(1, int(float64(width)*scale)), max(1, int(float64(height)*scale)), nil
		}
		return w, h, nil
	case !confined && errW == nil && w > 0 && parts[1] == "":
		return w, max(1, height*w/width), nil
	case !confined && errH == nil && h > 0 && parts[0] == "":
		return max(1, width*h/height), h, nil
	}
	return 0, 0, fmt.Errorf("%w: size %q", errBadIIIFParam, size)
}

func fitWithin(width, height, limit int) (int, int) {
	if width <= limit && height <= limit {
		return width, height
	}
	if width >= height {
		return limit, max(1, height*limit/width)
	}
	return max(1, width*limit/height), limit
}

func parseInts(s string, count int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != count {
		return nil, errBadIIIFParam
	}
	ret := make([]int, count)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, errBadIIIFParam
		}
		ret[i] = n
	}
	return ret, nil
}

func encodeImage(buf *bytes.Buffer, img image.Image, format string) (string, error) {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg", jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
	case "tif", "tiff":
		return "image/tiff", tiff.Encode(buf, img, nil)
	case "png":
		return "image/png", png.Encode(buf, img)
	}
	return "", fmt.Errorf("%w: format %q is not supported", errBadIIIFParam, format)
}
