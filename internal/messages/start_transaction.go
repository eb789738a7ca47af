package messages

const StartTransactionFeatureName = "StartTransaction"

type StartTransactionRequest struct {
	ConnectorId   int       `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    int       `json:"meterStart"`
	ReservationId *int      `json:"reservationId,omitempty"`
	Timestamp     *DateTime `json:"timestamp"`
}

func (r *StartTransactionRequest) GetFeatureName() string { return StartTransactionFeatureName }

type StartTransactionResponse struct {
	IdTagInfo     *IdTagInfo `json:"idTagInfo"`
	TransactionId int        `json:"transactionId"`
}

func (r *StartTransactionResponse) GetFeatureName() string { return StartTransactionFeatureName }
