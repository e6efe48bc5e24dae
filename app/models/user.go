package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"

	USER_SOURCE_SIGNUP = "signup"
	USER_SOURCE_PADDLE = "paddle"
)

// User is a platform account. Accounts provisioned from Paddle customer
// events have no password until an operator sets one.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	FirstName    string         `gorm:"type:varchar(100);default:''" json:"first_name" validate:"max=100"`
	LastName     string         `gorm:"type:varchar(100);default:''" json:"last_name" validate:"max=100"`
	Email        string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password     string         `gorm:"type:text" json:"-"`
	Role         string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status       string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	Rememberable bool           `gorm:"default:false" json:"rememberable"`
	Source       string         `gorm:"type:varchar(20);default:'signup'" json:"source" validate:"oneof=signup paddle"`
	LastLoginAt  *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateAdmin builds an active admin account with a hashed password.
func CreateAdmin(name, email, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:     name,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: pw,
		Role:     ROLE_ADMIN,
		Status:   STATUS_ACTIVE,
		Source:   USER_SOURCE_SIGNUP,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// NewProvisionedUser builds the password-less account created when a Paddle
// customer is seen for the first time.
func NewProvisionedUser(email, firstName, lastName string) (*User, error) {
	u := &User{
		Name:         strings.TrimSpace(firstName + " " + lastName),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Role:         ROLE_USER,
		Status:       STATUS_ACTIVE,
		Rememberable: false,
		Source:       USER_SOURCE_PADDLE,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// CheckPassword verifies the password. Password-less accounts never match.
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}
