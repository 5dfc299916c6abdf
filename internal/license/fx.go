package license

import (
	"github.com/smallbiznis/assessly/internal/license/repository"
	"github.com/smallbiznis/assessly/internal/license/service"
	"go.uber.org/fx"
)

var Module = fx.Module("license.manager",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
