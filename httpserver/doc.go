/*
Package httpserver runs the provisioning API and its operational endpoints.

The server mounts any number of RouteRegistrar handlers (the provisioning API
in api/provisioner) behind the slog access-log middleware, and adds:

	GET /livez     liveness, always 200
	GET /readyz    200 when ready, 503 while drained
	GET /drain     mark the server not ready
	GET /undrain   mark the server ready again
	/debug/pprof   when EnablePprof is set

Prometheus metrics are served by a separate listener on MetricsAddr.

Shutdown drains first: the server reports not ready for DrainDuration so load
balancers stop routing to it, then in-flight requests get up to
GracefulShutdownDuration to finish.
*/
package httpserver
