package messages

const UnlockConnectorFeatureName = "UnlockConnector"

type UnlockConnectorRequest struct {
	ConnectorId int `json:"connectorId"`
}

func (r *UnlockConnectorRequest) GetFeatureName() string { return UnlockConnectorFeatureName }

type UnlockConnectorResponse struct {
	Status UnlockStatus `json:"status"`
}

func (r *UnlockConnectorResponse) GetFeatureName() string { return UnlockConnectorFeatureName }

func NewUnlockConnectorResponse(status UnlockStatus) *UnlockConnectorResponse {
	return &UnlockConnectorResponse{Status: status}
}
