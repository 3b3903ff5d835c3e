package models

import (
	"strings"
	"unicode/utf8"

	"reasondesk/internal/errs"
)

type User struct {
	BaseUUIDModel
	Email       string `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	DisplayName string `gorm:"type:varchar(255)"                      json:"displayName"`
	Role        string `gorm:"type:varchar(20);not null"              json:"role"`
	Password    string `gorm:"type:varchar(255)"                      json:"-"`
	IsActive    bool   `gorm:"not null"                               json:"isActive"`
}

const (
	RoleAdmin     = "admin"
	RoleReviewer  = "reviewer"
	RoleExhibitor = "exhibitor"
)

type CreateUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

func (r CreateUserRequest) Validate() error {
	var v errs.ValidationErrors
	email := strings.TrimSpace(r.Email)
	if email == "" {
		v.Add("email", "is required")
	} else {
		validateOptionalEmail(&v, &email)
	}
	validateRole(&v, r.Role)
	if utf8.RuneCountInString(r.Password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	return v.OrNil()
}

type UpdateUserRequest struct {
	DisplayName *string `json:"displayName"`
	Role        *string `json:"role"`
	Password    *string `json:"password"`
	IsActive    *bool   `json:"isActive"`
}

func (r UpdateUserRequest) Validate() error {
	var v errs.ValidationErrors
	if r.Role != nil {
		validateRole(&v, *r.Role)
	}
	if r.Password != nil && utf8.RuneCountInString(*r.Password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	return v.OrNil()
}

func validateRole(v *errs.ValidationErrors, role string) {
	switch role {
	case "", RoleAdmin, RoleReviewer, RoleExhibitor:
	default:
		v.Add("role", "must be admin, reviewer or exhibitor")
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	var v errs.ValidationErrors
	if strings.TrimSpace(r.Email) == "" {
		v.Add("email", "is required")
	}
	if r.Password == "" {
		v.Add("password", "is required")
	}
	return v.OrNil()
}
