package billing

import (
	"github.com/campushq/paycore/internal/billing/repository"
	"github.com/campushq/paycore/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
