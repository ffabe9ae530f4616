package user

import (
	"github.com/frahmantamala/leaf/internal/media"
	"github.com/frahmantamala/leaf/internal/permission"
)

type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserResponse is the public view of a user. It never carries the hash.
type UserResponse struct {
	ID           int64           `json:"id"`
	Email        string          `json:"email"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Disabled     bool            `json:"disabled"`
	ProfileImage *string         `json:"profile_image"`
	Permissions  map[string]bool `json:"permissions"`
	Groups       []GroupRef      `json:"groups"`
}

// Serializer resolves stored image names against the media URL.
type Serializer struct {
	images *media.Images
}

func NewSerializer(images *media.Images) *Serializer {
	return &Serializer{images: images}
}

// Serialize builds the view for the image variant of the given height.
func (s *Serializer) Serialize(u *User, height int) UserResponse {
	groups := make([]GroupRef, 0, len(u.Groups))
	for _, g := range u.Groups {
		groups = append(groups, GroupRef{ID: g.ID, Name: g.Name})
	}

	resp := UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Disabled:    u.Disabled,
		Permissions: permission.Expand(u.Permissions),
		Groups:      groups,
	}
	if s.images != nil {
		resp.ProfileImage = s.images.URL(u.ID, u.ProfileImage, height)
	}
	return resp
}
