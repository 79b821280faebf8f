package settlement

import (
	"go.uber.org/fx"

	"creditledger/services/entitlement"
)

var Module = fx.Module("settlement.service",
	fx.Provide(
		NewHTTPProvider,
		NewProcessor,
		NewHandler,
		NewWebhookDeliverer,
		func(s *entitlement.Service) Granter { return s },
	),
	fx.Invoke(
		RegisterRoutes,
		RegisterTasks,
	),
)
