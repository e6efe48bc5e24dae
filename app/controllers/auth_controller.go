package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	"gorm.io/gorm"

	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/usercontext"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// AuthController handles admin session login and logout.
type AuthController struct {
	users    repository.UserRepository
	sessions *session.Store
}

func NewAuthController(users repository.UserRepository, sessions *session.Store) *AuthController {
	return &AuthController{users: users, sessions: sessions}
}

// HandleLogin starts an admin session.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid login request"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Email and password are required"})
	}

	// notice: do not tell the caller which part of the login failed
	denied := func() error {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "There is a problem with the login process"})
	}
	user, err := ac.users.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return denied()
		}
		log.Errorf("[Auth] User lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}
	if !user.IsActive() || !user.IsAdmin() || !user.CheckPassword(req.Password) {
		log.Warnf("[Auth] Rejected admin login for user %d", user.ID)
		return denied()
	}

	sess, err := ac.sessions.Get(c)
	if err != nil {
		log.Errorf("[Auth] Session unavailable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}
	if err := sess.Regenerate(); err != nil {
		log.Errorf("[Auth] Session regenerate failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}

	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Email)
	sess.Set(usercontext.KeyIsAdmin, true)
	if err := sess.Save(); err != nil {
		log.Errorf("[Auth] Session save failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := ac.users.Update(c.UserContext(), user); err != nil {
		log.Warnf("[Auth] Could not stamp last login for user %d: %v", user.ID, err)
	}

	log.Infof("[Auth] Admin %s logged in", user.Email)
	return c.JSON(fiber.Map{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"last_login_at": formatTimePtr(user.LastLoginAt),
	})
}

// HandleLogout ends the admin session.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	sess, err := ac.sessions.Get(c)
	if err != nil {
		return c.JSON(fiber.Map{"status": "logged_out"})
	}
	if err := sess.Destroy(); err != nil {
		log.Errorf("[Auth] Session destroy failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Logout failed"})
	}
	return c.JSON(fiber.Map{"status": "logged_out"})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
