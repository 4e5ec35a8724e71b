// Package di provides dependency injection configuration for the BookWorm server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bookwormapp/bookworm/internal/auth"
	"github.com/bookwormapp/bookworm/internal/config"
	"github.com/bookwormapp/bookworm/internal/di/providers"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Image hosting
	do.Provide(injector, providers.ProvideImageStorage)
	do.Provide(injector, providers.ProvideImageProcessor)
	do.Provide(injector, providers.ProvideImageHost)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideBookService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap resolves every service in dependency order and starts the HTTP
// server last. Providers run lazily, so the first failure here names the
// component that could not start.
func Bootstrap(injector *do.RootScope) error {
	steps := []func(do.Injector) error{
		invoke[*config.Config],
		invoke[*logger.Logger],
		invoke[providers.AuthKey],
		invoke[*providers.StoreHandle],
		invoke[*images.Storage],
		invoke[*images.Processor],
		invoke[images.Host],
		invoke[*providers.SearchIndexHandle],
		invoke[*auth.TokenService],
		invoke[*service.AuthService],
		invoke[*service.BookService],
	}
	for _, step := range steps {
		if err := step(injector); err != nil {
			return err
		}
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	return invoke[*providers.HTTPServerHandle](injector)
}

func invoke[T any](i do.Injector) error {
	_, err := do.Invoke[T](i)
	return err
}
