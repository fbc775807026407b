package dto

import (
	"strings"

	"github.com/hugh/agentops/internal/api/validation"
	"github.com/hugh/agentops/internal/orgs"
	"github.com/hugh/agentops/internal/rbac"
)

const maxBulkInvites = 100

type UpdateOrgRequest struct {
	Name string `json:"name"`
}

func (r UpdateOrgRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if msg := validation.RequiredText(r.Name, "Name", validation.MaxNameLength); msg != "" {
		errors["name"] = msg
	}
	return errors
}

type UpdateMemberRequest struct {
	Role       *string `json:"role"`
	GlobalRole *string `json:"globalRole"`
}

func (r UpdateMemberRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Role == nil && r.GlobalRole == nil {
		errors["role"] = "Role or globalRole is required"
	}
	if r.Role != nil {
		if _, ok := rbac.ParseOrgRole(*r.Role); !ok {
			errors["role"] = "Role must be one of ADMIN, PM, MEMBER"
		}
	}
	// an empty global role clears the override
	if r.GlobalRole != nil && *r.GlobalRole != "" {
		if _, ok := rbac.ParseGlobalRole(*r.GlobalRole); !ok {
			errors["globalRole"] = "Global role must be one of ADMIN, PROJECT_MANAGER, TEAM_MEMBER"
		}
	}

	return errors
}

func (r UpdateMemberRequest) Input() orgs.UpdateMemberInput {
	return orgs.UpdateMemberInput{Role: r.Role, GlobalRole: r.GlobalRole}
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r InviteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	validateEmail(errors, r.Email)
	validateOptionalOrgRole(errors, r.Role)

	return errors
}

type BulkInviteRequest struct {
	Emails []string `json:"emails"`
	Role   string   `json:"role"`
}

func (r BulkInviteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	switch {
	case len(r.Emails) == 0:
		errors["emails"] = "At least one email is required"
	case len(r.Emails) > maxBulkInvites:
		errors["emails"] = "At most 100 emails per request"
	}
	validateOptionalOrgRole(errors, r.Role)

	return errors
}

type AcceptInviteRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r AcceptInviteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Token) == "" {
		errors["token"] = "Token is required"
	}
	if msg := validation.OptionalText(r.Name, "Name", validation.MaxNameLength); msg != "" {
		errors["name"] = msg
	}
	if r.Password != "" {
		if ok, msg := validation.IsValidPassword(r.Password); !ok {
			errors["password"] = msg
		}
	}

	return errors
}

func (r AcceptInviteRequest) Input() orgs.AcceptInput {
	return orgs.AcceptInput{
		Token:    strings.TrimSpace(r.Token),
		Name:     strings.TrimSpace(r.Name),
		Password: r.Password,
	}
}

func validateOptionalOrgRole(errors map[string]string, role string) {
	if strings.TrimSpace(role) == "" {
		return
	}
	if _, ok := rbac.ParseOrgRole(role); !ok {
		errors["role"] = "Role must be one of ADMIN, PM, MEMBER"
	}
}
