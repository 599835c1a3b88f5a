package organization

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var validRoles = map[string]struct{}{
	RoleAdmin:  {},
	RoleMember: {},
}

func IsValidRole(value string) bool {
	_, ok := validRoles[value]
	return ok
}

type Organization struct {
	ID        string          `bson:"_id,omitempty" json:"id"`
	Name      string          `bson:"name" json:"name"`
	Slug      string          `bson:"slug" json:"slug"`
	Plan      string          `bson:"plan" json:"plan"`
	// Mirror of the wallet balance; the wallet document is authoritative and
	// this field is rewritten whenever a balance read finds them diverged.
	Credits   int64           `bson:"credits" json:"credits"`
	Features  map[string]bool `bson:"features" json:"features"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at" json:"updated_at"`
}

type User struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	OrganizationID string    `bson:"organization_id" json:"organization_id"`
	Name           string    `bson:"name" json:"name"`
	Email          string    `bson:"email" json:"email"`
	Phone          string    `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash   string    `bson:"password_hash" json:"-"`
	Role           string    `bson:"role" json:"role"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

type SignupRequest struct {
	OrganizationName string `json:"organization_name" validate:"required,min=2"`
	Name             string `json:"name" validate:"required,min=2"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone" validate:"omitempty,phone"`
	Password         string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin member"`
}

type UpdateFeaturesRequest struct {
	Features map[string]bool `json:"features" validate:"required"`
}
