package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	MCatalogReservations MetricKey = "catalog_reservations_total"
	MOrderCompensations  MetricKey = "order_compensations_total"
	MLedgerRetries       MetricKey = "order_ledger_retries_total"
	MLedgerEscalations   MetricKey = "order_ledger_escalations_total"
	MReleaseEscalations  MetricKey = "order_release_escalations_total"
	MEventsForwarded     MetricKey = "events_forwarded_total"
)
