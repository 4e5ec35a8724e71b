package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/bookwormapp/bookworm/internal/config"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/media/images"
)

// ProvideImageStorage provides the filesystem storage for uploaded book images.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorageWithSubdir(cfg.Data.BasePath, cfg.Images.Subdir)
	if err != nil {
		return nil, fmt.Errorf("image storage: %w", err)
	}

	count, err := storage.Count()
	if err != nil {
		return nil, fmt.Errorf("image storage: count %s: %w", storage.Path(""), err)
	}
	log.Info("Image storage initialized", "path", storage.Path(""), "images", count)

	return storage, nil
}

// ProvideImageProcessor provides the upload normalizer.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(cfg.Images.MaxDimension, log.Logger), nil
}

// ProvideImageHost provides the image host that serves uploads from this server.
func ProvideImageHost(i do.Injector) (images.Host, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storage := do.MustInvoke[*images.Storage](i)
	processor := do.MustInvoke[*images.Processor](i)

	return images.NewLocalHost(storage, processor, cfg.Server.PublicURL, log.Logger), nil
}
