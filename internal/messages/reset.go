package messages

const ResetFeatureName = "Reset"

type ResetRequest struct {
	Type ResetType `json:"type"`
}

func (r *ResetRequest) GetFeatureName() string { return ResetFeatureName }

type ResetResponse struct {
	Status ResetStatus `json:"status"`
}

func (r *ResetResponse) GetFeatureName() string { return ResetFeatureName }

func NewResetResponse(status ResetStatus) *ResetResponse { return &ResetResponse{Status: status} }
