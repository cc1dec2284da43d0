package providers

import "go.uber.org/fx"

// Module provides the LinkedIn provider under each of its roles
var Module = fx.Module("providers",
	fx.Provide(
		fx.Annotate(
			NewLinkedInProvider,
			fx.As(new(Provider)),
			fx.As(new(Authorizer)),
			fx.As(new(TokenExchanger)),
			fx.As(new(ProfileFetcher)),
		),
	),
)
