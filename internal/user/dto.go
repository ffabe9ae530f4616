package user

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,max=72"`
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
}

type ConfirmRequest struct {
	Key string `json:"key" validate:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

type PasswordResetConfirmRequest struct {
	Key         string `json:"key" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

type PermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

const PasswordResetSentDetail = "Password reset instructions have been sent to the provided email address."
