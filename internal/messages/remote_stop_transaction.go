package messages

const RemoteStopTransactionFeatureName = "RemoteStopTransaction"

type RemoteStopTransactionRequest struct {
	TransactionId int `json:"transactionId"`
}

func (r *RemoteStopTransactionRequest) GetFeatureName() string {
	return RemoteStopTransactionFeatureName
}

type RemoteStopTransactionResponse struct {
	Status RemoteStartStopStatus `json:"status"`
}

func (r *RemoteStopTransactionResponse) GetFeatureName() string {
	return RemoteStopTransactionFeatureName
}

func NewRemoteStopTransactionResponse(status RemoteStartStopStatus) *RemoteStopTransactionResponse {
	return &RemoteStopTransactionResponse{Status: status}
}
