package messages

const ClearChargingProfileFeatureName = "ClearChargingProfile"

type ClearChargingProfileRequest struct {
	Id                     *int                        `json:"id,omitempty"`
	ConnectorId            *int                        `json:"connectorId,omitempty"`
	ChargingProfilePurpose ChargingProfilePurposeType `json:"chargingProfilePurpose,omitempty"`
	StackLevel             *int                        `json:"stackLevel,omitempty"`
}

func (r *ClearChargingProfileRequest) GetFeatureName() string {
	return ClearChargingProfileFeatureName
}

type ClearChargingProfileResponse struct {
	Status ClearChargingProfileStatus `json:"status"`
}

func (r *ClearChargingProfileResponse) GetFeatureName() string {
	return ClearChargingProfileFeatureName
}

func NewClearChargingProfileResponse(status ClearChargingProfileStatus) *ClearChargingProfileResponse {
	return &ClearChargingProfileResponse{Status: status}
}
