package models

import (
	"net/mail"
	"strings"

	"reasondesk/internal/errs"
)

type Client struct {
	BaseUUIDModel
	Name     string  `gorm:"type:varchar(255);not null;index" json:"name"`
	Company  string  `gorm:"type:varchar(255)"                json:"company"`
	Email    *string `gorm:"type:varchar(255);index"          json:"email"`
	Phone    *string `gorm:"type:varchar(50)"                 json:"phone"`
	Notes    string  `gorm:"type:text"                        json:"notes"`
	IsActive bool    `gorm:"not null"                         json:"isActive"`
}

type ClientRequest struct {
	Name     string  `json:"name"`
	Company  string  `json:"company"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Notes    string  `json:"notes"`
	IsActive *bool   `json:"isActive"`
}

func (r ClientRequest) Validate() error {
	var v errs.ValidationErrors
	if strings.TrimSpace(r.Name) == "" {
		v.Add("name", "is required")
	}
	validateOptionalEmail(&v, r.Email)
	return v.OrNil()
}

func (r ClientRequest) ApplyTo(client *Client) {
	client.Name = strings.TrimSpace(r.Name)
	client.Company = r.Company
	client.Email = r.Email
	client.Phone = r.Phone
	client.Notes = r.Notes
	if r.IsActive != nil {
		client.IsActive = *r.IsActive
	} else if client.ID == "" {
		client.IsActive = true
	}
}

func validateOptionalEmail(v *errs.ValidationErrors, email *string) {
	if email == nil || *email == "" {
		return
	}
	if _, err := mail.ParseAddress(*email); err != nil {
		v.Add("email", "is not a valid address")
	}
}
