//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/metacore/internal/core/config"
	"github.com/zeusync/metacore/internal/runtime"
)

func InitializeRuntime(cfg config.Config) (*runtime.Runtime, func(), error) {
	wire.Build(runtime.ProviderSet)
	return nil, nil, nil
}
