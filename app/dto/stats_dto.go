package dto

// DashboardResponse aggregates the owner's records and dispatch counters
// for the home screen
type DashboardResponse struct {
	Message           string `json:"message"`
	Mailings          int64  `json:"mailings"`
	RunningMailings   int64  `json:"running_mailings"`
	Recipients        int64  `json:"recipients"`
	Messages          int64  `json:"messages"`
	OkCount           uint64 `json:"ok_count"`
	ErrorCount        uint64 `json:"error_count"`
	MessagesSentCount uint64 `json:"messages_sent_count"`
}
