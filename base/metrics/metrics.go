package metrics

const (
	ClientExchangesH     = "The total number of SNTP exchanges started"
	ClientExchangesN     = "sntp_client_exchanges"
	ClientReqsSentH      = "The total number of SNTP requests sent"
	ClientReqsSentN      = "sntp_client_reqs_sent"
	ClientRespsAcceptedH = "The total number of SNTP replies that yielded a corrected time"
	ClientRespsAcceptedN = "sntp_client_resps_accepted"
	ClientRespsRejectedH = "The total number of SNTP replies rejected, by reason"
	ClientRespsRejectedN = "sntp_client_resps_rejected"
	ClientTimeoutsH      = "The total number of SNTP exchanges abandoned without a reply"
	ClientTimeoutsN      = "sntp_client_timeouts"

	SyncOffsetH  = "The current clock offset in milliseconds"
	SyncOffsetN  = "sntp_sync_offset_ms"
	SyncBackoffH = "The current resync backoff after a kiss of death in seconds"
	SyncBackoffN = "sntp_sync_backoff_seconds"
)
