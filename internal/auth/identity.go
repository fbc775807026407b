package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/rbac"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password.
var ErrInvalidCredentials = apperr.Unauthorized("Invalid credentials")

type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

func (p Provider) column() (string, error) {
	switch p {
	case ProviderGoogle:
		return "google_id", nil
	case ProviderFacebook:
		return "facebook_id", nil
	}
	return "", fmt.Errorf("unknown oauth provider %q", p)
}

func (p Provider) title() string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// OAuthProfile is what a provider returns after the code exchange.
type OAuthProfile struct {
	Provider    Provider
	ProviderID  string
	DisplayName string
	Email       string
}

type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Resolver) ResolveLocal(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// ResolveOrCreateOAuth maps a provider profile onto a user, in this order:
//  1. a user already linked to the provider id
//  2. a user with the same email, which gets the provider id attached
//  3. a new organization and a new ADMIN user owning it
//
// Step 3 grants ADMIN of a fresh organization to any first-time OAuth user,
// even when a pending invite for the email exists elsewhere.
func (r *Resolver) ResolveOrCreateOAuth(ctx context.Context, profile OAuthProfile) (*models.User, bool, error) {
	column, err := profile.Provider.column()
	if err != nil {
		return nil, false, err
	}
	if profile.ProviderID == "" {
		return nil, false, apperr.BadRequest("OAuth profile has no id")
	}
	email := NormalizeEmail(profile.Email)

	var user models.User
	created := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Organization").Where(column+" = ?", profile.ProviderID).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if email != "" {
			err = tx.Preload("Organization").Where("email = ?", email).First(&user).Error
			if err == nil {
				return tx.Model(&user).Update(column, profile.ProviderID).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		org := models.Organization{Name: oauthOrgName(profile)}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		if email == "" {
			email = fmt.Sprintf("%s-%s@users.noreply.agentops.local", profile.Provider, profile.ProviderID)
		}
		providerID := profile.ProviderID
		user = models.User{
			Email:          email,
			Name:           displayNameOr(profile.DisplayName, email),
			PasswordHash:   UnusablePassword,
			OrganizationID: org.ID,
			Role:           string(rbac.OrgAdmin),
		}
		if profile.Provider == ProviderGoogle {
			user.GoogleID = &providerID
		} else {
			user.FacebookID = &providerID
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		user.Organization = &org
		created = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, ErrEmailTaken
		}
		return nil, false, fmt.Errorf("resolving %s identity: %w", profile.Provider, err)
	}
	return &user, created, nil
}

func oauthOrgName(p OAuthProfile) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name + "'s Org"
	}
	if local, _, ok := strings.Cut(NormalizeEmail(p.Email), "@"); ok && local != "" {
		return local + "'s Org"
	}
	return p.Provider.title() + " User Org"
}

func displayNameOr(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
