package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a logger tagged with node and component from the
// process logger configured by the logging package.
func ComponentLogger(node, component string) zerolog.Logger {
	return log.Logger.With().Str("node", node).Str("component", component).Logger()
}
