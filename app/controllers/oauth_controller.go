package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/flowmarkt/flowmarkt/app/models"
	"github.com/flowmarkt/flowmarkt/internal/pkg/database"
)

// HandleOAuthCallback completes the provider flow and logs the user in
func HandleOAuthCallback(c *fiber.Ctx) error {
	// Complete OAuth with provider and obtain unified user
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	db := database.GetDB()

	// Match by email; OAuth signups land as buyers.
	var appUser models.User
	res := db.Where("email = ?", u.Email).First(&appUser)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		// Create new user; ensure password is set to a random placeholder since
		// validation requires it. Not usable for password login.
		placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
		hash, _ := models.HashPassword(placeholder)
		email := u.Email
		if email == "" {
			// Ensure unique, non-empty email to satisfy unique index semantics in MySQL
			email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
		}
		appUser = models.User{
			Name:     firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
			Email:    email,
			Password: hash,
			Role:     models.ROLE_BUYER,
			Status:   models.STATUS_ACTIVE,
		}
		if err := db.Create(&appUser).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
		}
	} else if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", res.Error))
	}

	if !appUser.IsActive() {
		return c.Status(fiber.StatusForbidden).SendString("account disabled")
	}

	if err := createUserSession(c, &appUser); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}

	// Update last login timestamp
	_ = db.Model(&appUser).UpdateColumn("last_login_at", time.Now()).Error

	return c.Redirect("/", fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
