package cart

import "github.com/google/uuid"

type mutationRequest struct {
	ItemID   uuid.UUID `json:"id" validate:"required"`
	Count    int       `json:"count" validate:"required,min=1"`
	Selected *bool     `json:"selected"`
}

// selected defaults to true, matching how the storefront adds items.
func (m mutationRequest) selected() bool {
	if m.Selected == nil {
		return true
	}
	return *m.Selected
}

type removeRequest struct {
	ItemID uuid.UUID `json:"id" validate:"required"`
}

type selectionRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

type entryResponse struct {
	ItemID   uuid.UUID `json:"id"`
	Count    int       `json:"count"`
	Selected bool      `json:"selected"`
}
