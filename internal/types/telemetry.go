package types

// Telemetry metric names for CloudWatch.
const (
	MetricAPILatency   = "APILatency"
	MetricAPIRequest   = "APIRequest"
	MetricNicknameMiss = "NicknameLookupMiss"

	DimEndpoint   = "Endpoint"
	DimMethod     = "Method"
	DimStatusCode = "StatusCode"

	MetricNamespace = "Backoffice"
)
