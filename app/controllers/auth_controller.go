package controllers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/flowmarkt/flowmarkt/app/models"
	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/database"
	"github.com/flowmarkt/flowmarkt/internal/pkg/mail"
	"github.com/flowmarkt/flowmarkt/internal/pkg/session"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new buyer or seller account and logs it in.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	user, err := models.CreateUser(req.Name, strings.ToLower(strings.TrimSpace(req.Email)), req.Password, req.Role)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	if err := userRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, fiber.StatusConflict, "email_taken", "an account with this email already exists")
		}
		log.Printf("register: create user failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create account")
	}

	go func(email, name string) {
		_ = mail.SendWelcomeMail(email, name)
	}(user.Email, user.Name)

	if err := createUserSession(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session init failed")
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleLogin authenticates via email and password.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
	}
	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "account_disabled", "this account is not active")
	}

	if err := createUserSession(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session init failed")
	}

	now := time.Now()
	_ = database.GetDB().Model(user).UpdateColumn("last_login_at", now).Error

	return c.JSON(user)
}

// HandleLogout destroys the current session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleMe returns the authenticated user's profile.
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
	}
	return c.JSON(user)
}

func createUserSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyUserRole, user.Role)
	return sess.Save()
}
