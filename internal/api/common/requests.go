package common

// ResolveImagesRequest for resolving a batch of image references
type ResolveImagesRequest struct {
	IDs []string `json:"ids" validate:"required,max=500,dive,required,max=2048"`
	// Viewer overrides the authenticated principal's viewer
	Viewer string `json:"viewer,omitempty" validate:"omitempty,max=256"`
}

// BindSessionImagesRequest for setting the image list shown by a session gallery
type BindSessionImagesRequest struct {
	IDs    []string `json:"ids" validate:"max=500,dive,required,max=2048"`
	Viewer string   `json:"viewer,omitempty" validate:"omitempty,max=256"`
}
