package messages

const HeartbeatFeatureName = "Heartbeat"

type HeartbeatRequest struct{}

func (r *HeartbeatRequest) GetFeatureName() string { return HeartbeatFeatureName }

type HeartbeatResponse struct {
	CurrentTime *DateTime `json:"currentTime"`
}

func (r *HeartbeatResponse) GetFeatureName() string { return HeartbeatFeatureName }

func NewHeartbeatResponse(t *DateTime) *HeartbeatResponse { return &HeartbeatResponse{CurrentTime: t} }
