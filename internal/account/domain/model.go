package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account is the credit-holding principal. Credits are only moved by the credit ledger.
type Account struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Email        string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	DisplayName  string       `json:"display_name" gorm:"type:text"`
	Role         Role         `json:"role" gorm:"type:text;not null;default:user"`
	Credits      int64        `json:"credits" gorm:"not null;default:0"`
	FullName     string       `json:"full_name" gorm:"type:text"`
	AddressLine1 string       `json:"address_line1" gorm:"type:text"`
	AddressLine2 string       `json:"address_line2" gorm:"type:text"`
	City         string       `json:"city" gorm:"type:text"`
	Postcode     string       `json:"postcode" gorm:"type:text"`
	Country      string       `json:"country" gorm:"type:text"`
	Phone        string       `json:"phone" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// HasSenderIdentity reports whether the profile is complete enough to sign a letter.
func (a Account) HasSenderIdentity() bool {
	return strings.TrimSpace(a.FullName) != "" &&
		strings.TrimSpace(a.AddressLine1) != "" &&
		strings.TrimSpace(a.Postcode) != ""
}

// AddressLines returns the non-empty postal lines in envelope order.
func (a Account) AddressLines() []string {
	lines := make([]string, 0, 5)
	for _, line := range []string{a.AddressLine1, a.AddressLine2, a.City, a.Postcode, a.Country} {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

type CreateAccountRequest struct {
	Email       string
	DisplayName string
	Role        Role
	Credits     int64
}

type UpdateProfileRequest struct {
	FullName     *string `json:"full_name"`
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	Postcode     *string `json:"postcode"`
	Country      *string `json:"country"`
	Phone        *string `json:"phone"`
	DisplayName  *string `json:"display_name"`
}
