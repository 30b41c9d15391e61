package models

// UserSeed is a user account record from a seed export file.
// Password is the plaintext from the export (if any); it is bcrypt-hashed
// by the seeder before persistence and never stored as-is.
type UserSeed struct {
	Username    string            `json:"username" validate:"required,min=3,max=30"`
	Email       string            `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Password    string            `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	DisplayName string            `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Avatars     []string          `json:"avatars,omitempty"` // avatar image URLs, first one wins
	Extra       map[string]string `json:"extra,omitempty"`
}
