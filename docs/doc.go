// Package docs provides the OpenAPI documentation served at /swagger.json.
//
// tome API
//
//	@title			tome API
//	@version		1.0
//	@description	Resumable chunked document generation: start, resume, inspect and clear jobs.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/tome
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/tome/serve.go -o . --parseInternal
