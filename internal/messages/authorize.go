package messages

const AuthorizeFeatureName = "Authorize"

type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

func (r *AuthorizeRequest) GetFeatureName() string { return AuthorizeFeatureName }

func NewAuthorizeRequest(idTag string) *AuthorizeRequest { return &AuthorizeRequest{IdTag: idTag} }

type AuthorizeResponse struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo"`
}

func (r *AuthorizeResponse) GetFeatureName() string { return AuthorizeFeatureName }
