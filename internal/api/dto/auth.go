package dto

import (
	"strings"

	"github.com/hugh/agentops/internal/api/validation"
	"github.com/hugh/agentops/internal/database/models"
)

type SignupRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organizationName"`
}

func (r SignupRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if msg := validation.RequiredText(r.Name, "Name", validation.MaxNameLength); msg != "" {
		errors["name"] = msg
	}
	validateEmail(errors, r.Email)
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if msg := validation.RequiredText(r.OrganizationName, "Organization name", validation.MaxNameLength); msg != "" {
		errors["organizationName"] = msg
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)
	validateEmail(errors, r.Email)
	return errors
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r ResetPasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Token) == "" {
		errors["token"] = "Token is required"
	}
	if r.NewPassword == "" {
		errors["newPassword"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.NewPassword); !ok {
		errors["newPassword"] = msg
	}

	return errors
}

type AuthResponse struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"accessToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type UserDTO struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	GlobalRole     *string `json:"globalRole,omitempty"`
	OrganizationID string  `json:"organizationId"`
	OrgName        string  `json:"orgName,omitempty"`
}

func NewUserDTO(u *models.User) UserDTO {
	out := UserDTO{
		ID:             u.ID.String(),
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		GlobalRole:     u.GlobalRole,
		OrganizationID: u.OrganizationID.String(),
	}
	if u.Organization != nil {
		out.OrgName = u.Organization.Name
	}
	return out
}

func validateEmail(errors map[string]string, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(email) {
		errors["email"] = "Invalid email format"
	}
}
