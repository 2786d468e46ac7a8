package users

// CreateUserRequest represents the data needed to create a new user
type CreateUserRequest struct {
	AttendeeCode string   `json:"attendee_code" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Socials      []string `json:"socials"`
	Phone        *string  `json:"phone"`
}
