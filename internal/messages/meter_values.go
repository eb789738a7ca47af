package messages

const MeterValuesFeatureName = "MeterValues"

type MeterValuesRequest struct {
	ConnectorId   int          `json:"connectorId"`
	TransactionId *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

func (r *MeterValuesRequest) GetFeatureName() string { return MeterValuesFeatureName }

type MeterValuesResponse struct{}

func (r *MeterValuesResponse) GetFeatureName() string { return MeterValuesFeatureName }
