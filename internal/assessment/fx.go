package assessment

import (
	"github.com/smallbiznis/assessly/internal/assessment/repository"
	"github.com/smallbiznis/assessly/internal/assessment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assessment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
