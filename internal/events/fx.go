package events

import (
	"github.com/smallbiznis/assessly/internal/events/repository"
	"github.com/smallbiznis/assessly/internal/events/service"
	"go.uber.org/fx"
)

var Module = fx.Module("events",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewRelay),
)
