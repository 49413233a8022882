package handler

const (
	errInternalServer     = "Internal server error"
	errTokenInvalid       = "Token is invalid or expired"
	errInvalidCredentials = "Invalid email or password"
	errEmailTaken         = "Email is already taken"
	errWeakPassword       = "Password must be between 8 and 72 characters"
)
