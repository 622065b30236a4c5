package common

// ResolveImagesResponse mirrors the request order; unresolvable entries are ""
type ResolveImagesResponse struct {
	URLs []string `json:"urls"`
}

// ImageResponse is a single resolved reference
type ImageResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// SessionImagesResponse is the observable state of a session gallery
type SessionImagesResponse struct {
	Session    string   `json:"session"`
	URLs       []string `json:"urls"`
	Busy       bool     `json:"busy"`
	Generation uint64   `json:"generation"`
}

// UserInfoResponse represents the authenticated principal
type UserInfoResponse struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Viewer string `json:"viewer,omitempty"`
}
