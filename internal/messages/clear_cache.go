package messages

const ClearCacheFeatureName = "ClearCache"

type ClearCacheRequest struct{}

func (r *ClearCacheRequest) GetFeatureName() string { return ClearCacheFeatureName }

type ClearCacheResponse struct {
	Status ClearCacheStatus `json:"status"`
}

func (r *ClearCacheResponse) GetFeatureName() string { return ClearCacheFeatureName }

func NewClearCacheResponse(status ClearCacheStatus) *ClearCacheResponse {
	return &ClearCacheResponse{Status: status}
}
