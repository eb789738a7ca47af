package messages

const ChangeConfigurationFeatureName = "ChangeConfiguration"

type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (r *ChangeConfigurationRequest) GetFeatureName() string { return ChangeConfigurationFeatureName }

type ChangeConfigurationResponse struct {
	Status ConfigurationStatus `json:"status"`
}

func (r *ChangeConfigurationResponse) GetFeatureName() string { return ChangeConfigurationFeatureName }

func NewChangeConfigurationResponse(status ConfigurationStatus) *ChangeConfigurationResponse {
	return &ChangeConfigurationResponse{Status: status}
}
