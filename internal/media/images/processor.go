package images

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const jpegQuality = 85

// Processed is an upload ready to be stored.
type Processed struct {
	Data     []byte
	Ext      string // including the dot
	Width    int
	Height   int
	BlurHash string
}

// Processor validates uploaded image bytes, downscales oversized images and
// computes their placeholder hash.
type Processor struct {
	maxDimension int
	logger       *slog.Logger
}

// NewProcessor creates a Processor. Images wider or taller than maxDimension
// are downscaled; 0 disables downscaling.
func NewProcessor(maxDimension int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{maxDimension: maxDimension, logger: logger}
}

// Process decodes data after sniffing its real content type. The declared
// media type of the upload is not trusted.
func (p *Processor) Process(data []byte) (*Processed, error) {
	contentType := http.DetectContentType(data)

	var (
		img image.Image
		ext string
		err error
	)
	switch contentType {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
		ext = ".jpg"
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
		ext = ".png"
	case "image/gif":
		img, err = gif.Decode(bytes.NewReader(data))
		ext = ".gif"
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(data))
		ext = ".webp"
	default:
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	out := &Processed{Data: data, Ext: ext}

	if p.maxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > p.maxDimension || b.Dy() > p.maxDimension {
			img = fit(img, p.maxDimension, draw.CatmullRom)
			out.Data, out.Ext, err = reencode(img, ext)
			if err != nil {
				return nil, err
			}
			p.logger.Debug("downscaled upload",
				"from", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
				"to", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()),
			)
		}
	}

	out.Width, out.Height = img.Bounds().Dx(), img.Bounds().Dy()

	hash, err := ComputeBlurHash(img)
	if err != nil {
		// The placeholder is optional.
		p.logger.Warn("blurhash failed", "error", err)
	} else {
		out.BlurHash = hash
	}

	return out, nil
}

// reencode writes a resized image back out. There is no WebP or animated GIF
// encoder in the stack, so those become JPEG and PNG respectively.
func reencode(img image.Image, ext string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch ext {
	case ".png", ".gif":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), ".png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), ".jpg", nil
	}
}
