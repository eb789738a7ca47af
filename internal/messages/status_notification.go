package messages

const StatusNotificationFeatureName = "StatusNotification"

type ChargePointErrorCode string

const (
	NoError            ChargePointErrorCode = "NoError"
	ConnectorLockFailure ChargePointErrorCode = "ConnectorLockFailure"
	InternalError      ChargePointErrorCode = "InternalError"
	OtherError         ChargePointErrorCode = "OtherError"
)

type ChargePointStatus string

const (
	ChargePointStatusAvailable     ChargePointStatus = "Available"
	ChargePointStatusPreparing     ChargePointStatus = "Preparing"
	ChargePointStatusCharging      ChargePointStatus = "Charging"
	ChargePointStatusSuspendedEVSE ChargePointStatus = "SuspendedEVSE"
	ChargePointStatusSuspendedEV   ChargePointStatus = "SuspendedEV"
	ChargePointStatusFinishing     ChargePointStatus = "Finishing"
	ChargePointStatusReserved      ChargePointStatus = "Reserved"
	ChargePointStatusUnavailable   ChargePointStatus = "Unavailable"
	ChargePointStatusFaulted       ChargePointStatus = "Faulted"
)

type StatusNotificationRequest struct {
	ConnectorId int                  `json:"connectorId"`
	ErrorCode   ChargePointErrorCode `json:"errorCode"`
	Info        string               `json:"info,omitempty"`
	Status      ChargePointStatus    `json:"status"`
	Timestamp   *DateTime            `json:"timestamp,omitempty"`
}

func (r *StatusNotificationRequest) GetFeatureName() string { return StatusNotificationFeatureName }

func NewStatusNotificationRequest(connectorId int, status ChargePointStatus, errorCode ChargePointErrorCode) *StatusNotificationRequest {
	return &StatusNotificationRequest{ConnectorId: connectorId, Status: status, ErrorCode: errorCode}
}

type StatusNotificationResponse struct{}

func (r *StatusNotificationResponse) GetFeatureName() string { return StatusNotificationFeatureName }
