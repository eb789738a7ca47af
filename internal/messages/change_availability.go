package messages

const ChangeAvailabilityFeatureName = "ChangeAvailability"

type ChangeAvailabilityRequest struct {
	ConnectorId int              `json:"connectorId"`
	Type        AvailabilityType `json:"type"`
}

func (r *ChangeAvailabilityRequest) GetFeatureName() string { return ChangeAvailabilityFeatureName }

type ChangeAvailabilityResponse struct {
	Status AvailabilityStatus `json:"status"`
}

func (r *ChangeAvailabilityResponse) GetFeatureName() string { return ChangeAvailabilityFeatureName }

func NewChangeAvailabilityResponse(status AvailabilityStatus) *ChangeAvailabilityResponse {
	return &ChangeAvailabilityResponse{Status: status}
}
