package api

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Commands are organized by their URL path structure.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running tome server via HTTP.

These commands require a running server (tome serve).
Use --server to specify a custom server URL.

Examples:
  tome api health                     # Check server health
  tome api jobs list                  # List all jobs
  tome api jobs start <id> -f in.txt  # Start or resume a job
  tome api jobs get <id>              # Show job progress`,
	}

	// Endpoints under /api/<group>/ become subcommands of <group>.
	groups := make(map[string]*cobra.Command)
	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		_, path, _ := ep.Route()
		name := commandGroup(path)
		if name == "" {
			apiCmd.AddCommand(cmd)
			continue
		}
		group, ok := groups[name]
		if !ok {
			group = &cobra.Command{Use: name, Short: name + " commands"}
			groups[name] = group
			apiCmd.AddCommand(group)
		}
		group.AddCommand(cmd)
	}

	return apiCmd
}

// commandGroup returns "jobs" for "/api/jobs/{id}" and "" for paths
// outside /api/.
func commandGroup(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
