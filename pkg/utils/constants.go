package utils

const (
	MsgStatusFetched  = "endpoint status fetched"
	MsgHistoryFetched = "probe history fetched"
	MsgSLOFetched     = "slo snapshot fetched"
	MsgAlertsFetched  = "open alerts fetched"
)
