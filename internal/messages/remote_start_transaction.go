package messages

const RemoteStartTransactionFeatureName = "RemoteStartTransaction"

type RemoteStartTransactionRequest struct {
	ConnectorId     *int             `json:"connectorId,omitempty"`
	IdTag           string           `json:"idTag"`
	ChargingProfile *ChargingProfile `json:"chargingProfile,omitempty"`
}

func (r *RemoteStartTransactionRequest) GetFeatureName() string {
	return RemoteStartTransactionFeatureName
}

type RemoteStartTransactionResponse struct {
	Status RemoteStartStopStatus `json:"status"`
}

func (r *RemoteStartTransactionResponse) GetFeatureName() string {
	return RemoteStartTransactionFeatureName
}

func NewRemoteStartTransactionResponse(status RemoteStartStopStatus) *RemoteStartTransactionResponse {
	return &RemoteStartTransactionResponse{Status: status}
}
