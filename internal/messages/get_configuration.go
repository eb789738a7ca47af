package messages

const GetConfigurationFeatureName = "GetConfiguration"

type ConfigurationKeyValue struct {
	Key      string  `json:"key"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty"`
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty"`
}

func (r *GetConfigurationRequest) GetFeatureName() string { return GetConfigurationFeatureName }

type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKeyValue `json:"configurationKey,omitempty"`
	UnknownKey       []string                `json:"unknownKey,omitempty"`
}

func (r *GetConfigurationResponse) GetFeatureName() string { return GetConfigurationFeatureName }
