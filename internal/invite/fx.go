package invite

import (
	"github.com/smallbiznis/assessly/internal/invite/repository"
	"github.com/smallbiznis/assessly/internal/invite/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invite.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewStateMachine),
	fx.Provide(service.AsTransitioner),
	fx.Provide(service.New),
)
