package linking

import "go.uber.org/fx"

// Module provides the callback orchestrator
var Module = fx.Module("linking",
	fx.Provide(New),
)
