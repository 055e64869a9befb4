package logging

// TaskField marks log entries destined for quickwit.
const TaskField = "task"

// Marker values and the quickwit indexes they map to.
const (
	TaskHTTPRequest  = "http_request"
	TaskClientSentWS = "client_sent_ws_message"
	TaskSocketsCount = "sockets_count"

	IndexHTTPRequests  = "http_requests"
	IndexClientSentWS  = "client_sent_ws_messages"
	IndexSocketsCounts = "sockets_counts"
)

// NewQuickwitCore wires the standard task-to-index routing for this service.
func NewQuickwitCore(url string) *QuickwitCore {
	return NewQuickwitCoreBuilder(url).
		MarkerField(TaskField).
		MapMarkerToIndex(TaskHTTPRequest, IndexHTTPRequests).
		MapMarkerToIndex(TaskClientSentWS, IndexClientSentWS).
		MapMarkerToIndex(TaskSocketsCount, IndexSocketsCounts).
		Build()
}
