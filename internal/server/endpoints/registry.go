package endpoints

import (
	"github.com/jackzampolin/tome/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Job endpoints
		&StartJobEndpoint{},
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&ClearJobEndpoint{},
		&JobLogsEndpoint{},
		&JobCallsEndpoint{},
		&JobOutputEndpoint{},

		// Swagger/OpenAPI
		&SwaggerEndpoint{},
	}
}
