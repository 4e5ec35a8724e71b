package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Uploaded describes a hosted image.
type Uploaded struct {
	PublicID string
	URL      string
	BlurHash string
}

// Host stores uploaded images and serves them under public URLs.
type Host interface {
	// Upload stores the image in a base64 data URL. Malformed or undecodable
	// input fails with ErrInvalidImage.
	Upload(ctx context.Context, dataURL string) (*Uploaded, error)
	// Destroy removes the image with the given public id.
	Destroy(ctx context.Context, publicID string) error
}

// LocalHost is a Host backed by Storage, served by the API under /images/.
type LocalHost struct {
	storage   *Storage
	processor *Processor
	baseURL   string
	logger    *slog.Logger
}

var _ Host = (*LocalHost)(nil)

// NewLocalHost creates a LocalHost. publicURL is the server's externally
// reachable base URL.
func NewLocalHost(storage *Storage, processor *Processor, publicURL string, logger *slog.Logger) *LocalHost {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LocalHost{
		storage:   storage,
		processor: processor,
		baseURL:   strings.TrimSuffix(publicURL, "/") + "/images/",
		logger:    logger,
	}
}

// Upload implements Host.
func (h *LocalHost) Upload(ctx context.Context, dataURL string) (*Uploaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	processed, err := h.processor.Process(data)
	if err != nil {
		return nil, err
	}

	publicID := uuid.NewString()
	if err := h.storage.Save(publicID, processed.Ext, processed.Data); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	h.logger.Debug("image uploaded",
		"public_id", publicID,
		"bytes", len(processed.Data),
		"width", processed.Width,
		"height", processed.Height,
	)

	return &Uploaded{
		PublicID: publicID,
		URL:      h.baseURL + publicID + processed.Ext,
		BlurHash: processed.BlurHash,
	}, nil
}

// Destroy implements Host.
func (h *LocalHost) Destroy(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if parsed, err := uuid.Parse(publicID); err != nil || parsed.String() != publicID {
		return fmt.Errorf("%w: not a hosted public id: %q", ErrNotFound, publicID)
	}
	return h.storage.Delete(publicID)
}

// PublicIDFromURL derives the host's public id from an image URL: the last
// path segment without its extension. It returns "" when there is none.
func PublicIDFromURL(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil && u.Path != "" {
		p = u.Path
	}

	last := path.Base(p)
	if last == "." || last == "/" {
		return ""
	}
	return strings.TrimSuffix(last, path.Ext(last))
}
