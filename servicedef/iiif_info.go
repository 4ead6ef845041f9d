package servicedef

// IIIF info.json context URLs. Image files are described with the IIIF Image API 3 context,
// anything else with the file context.
const (
	IIIFImageContext = "http://iiif.io/api/image/3/context.json"
	IIIFFileContext  = "http://sipi.io/api/file/3/context.json"
	IIIFProtocol     = "http://iiif.io/api/image"
)

// IIIFRestrictedSize is the bounding box applied to images whose access is restricted.
const IIIFRestrictedSize = 128

// IIIFImageInfo is the info.json document returned for an image.
type IIIFImageInfo struct {
	Context          string     `json:"@context"`
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Protocol         string     `json:"protocol"`
	Profile          string     `json:"profile"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	Sizes            []IIIFSize `json:"sizes"`
	ExtraFeatures    []string   `json:"extraFeatures"`
	ExtraFormats     []string   `json:"extraFormats"`
	ExtraQualities   []string   `json:"extraQualities"`
	PreferredFormats []string   `json:"preferredFormats"`
}

type IIIFSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IIIFFileInfo is the info.json document returned for a non-image file.
type IIIFFileInfo struct {
	Context          string `json:"@context"`
	ID               string `json:"id"`
	InternalMimeType string `json:"internalMimeType"`
	FileSize         int64  `json:"fileSize"`
}

// IIIFExtraFeatures lists the optional IIIF features the server supports, in the order it
// reports them.
var IIIFExtraFeatures = []string{ //nolint:gochecknoglobals
	"baseUriRedirect",
	"canonicalLinkHeader",
	"cors",
	"jsonldMediaType",
	"mirroring",
	"profileLinkHeader",
	"regionByPct",
	"regionByPx",
	"regionSquare",
	"rotationArbitrary",
	"rotationBy90s",
	"sizeByConfinedWh",
	"sizeByH",
	"sizeByPct",
	"sizeByW",
	"sizeByWh",
	"sizeUpscaling",
}
