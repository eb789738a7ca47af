package messages

const SetChargingProfileFeatureName = "SetChargingProfile"

type SetChargingProfileRequest struct {
	ConnectorId     int              `json:"connectorId"`
	ChargingProfile *ChargingProfile `json:"csChargingProfiles"`
}

func (r *SetChargingProfileRequest) GetFeatureName() string { return SetChargingProfileFeatureName }

type SetChargingProfileResponse struct {
	Status ChargingProfileStatus `json:"status"`
}

func (r *SetChargingProfileResponse) GetFeatureName() string { return SetChargingProfileFeatureName }

func NewSetChargingProfileResponse(status ChargingProfileStatus) *SetChargingProfileResponse {
	return &SetChargingProfileResponse{Status: status}
}
