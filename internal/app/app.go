package app

import (
	"github.com/cleitonmarx/epm-copilot/internal/adapters/inbound/console"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/inbound/http"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/claude"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/config"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/epm"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/log"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/mcptools"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/postgres"
	"github.com/cleitonmarx/epm-copilot/internal/adapters/outbound/time"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/epm-copilot/internal/usecases"
	"github.com/cleitonmarx/symbiont"
)

// NewCopilotApp creates and returns a new instance of the EPM copilot application.
func NewCopilotApp(initializers ...symbiont.Initializer) *symbiont.App {
	return symbiont.NewApp().
		Initialize(initializers...).
		Initialize(
			&log.InitLogger{},
			&telemetry.InitOpenTelemetry{},
			&telemetry.InitHttpClient{},
			&config.InitVaultProvider{},
			&postgres.InitDB{},
			&time.InitCurrentTimeProvider{},
			&epm.InitPlanningGateway{},
			&claude.InitCompletionAdapter{},
			&mcptools.InitToolChannel{},

			&usecases.InitPlanningJobRunner{},
			&usecases.InitInteropQueries{},
			&usecases.InitToolUseOrchestrator{},
		).
		Host(
			&http.CopilotServer{},
			&console.REPL{},
		).
		Introspect(&MermaidGraphIntrospector{})
}
