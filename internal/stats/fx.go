package stats

import (
	"github.com/smallbiznis/assessly/internal/stats/repository"
	"github.com/smallbiznis/assessly/internal/stats/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stats.aggregator",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
