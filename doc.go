/*
Package rawhttp is a small HTTP/1.x server engine built directly on TCP
listeners.

Each accepted connection carries exactly one request. The accept loop
decodes the request line, headers and a Content-Length framed body,
matches the path against an ordered table of URI templates and hands the
matched handler to a fixed-size worker pool. The worker writes one
response and closes the connection. There is no keep-alive, pipelining,
chunked encoding, TLS or HTTP/2.

Quick Start

	cfg := config.New()
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	application.Builder().
		GET("/", services.Home{}).
		POST("/animal", services.Animal{}).
		GET("/users/{id}", http.HandlerFunc(func(req *http.Request) *http.Response {
			return http.NewResponse(http.StatusOK).JSON(map[string]string{
				"id": req.Param("id"),
			})
		}))

	log.Fatal(application.Run(context.Background()))

Routing

Templates are literal paths with {name} placeholders, each matching one
non-empty path segment. Routes are tried in registration order and the
first one whose template and method both match wins. A path that matches
some template under a different method is answered 405, an unmatched
path 404, and a request that cannot be decoded 400.

Modules

  - app: application lifecycle, logging setup and signal handling
  - config: flags, RAWHTTP_* environment variables and JSON files
  - core: server builder, accept loops and statistics
  - core/http: request decoder, response encoder and the Handler interface
  - core/router: compiled URI templates and the route table
  - core/codec: JSON and protobuf body codecs
  - core/middleware: handler decorators (recover, logging, request id, rate limit)
  - core/pools: worker pool, buffer pool and GC tuning
  - core/observability: per-route latency and error tracking
  - services: the handlers mounted by examples/basic
*/
package rawhttp
