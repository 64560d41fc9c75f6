package controllers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/cache"
	"github.com/flowmarkt/flowmarkt/internal/pkg/mail"
)

const adminStatsCacheKey = "admin:stats"
const adminStatsCacheTTL = 5 * time.Minute

// HandleAdminListAutomations returns all listings including unapproved ones.
func HandleAdminListAutomations(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	automations, err := repository.GetGlobalFactory().GetAutomationRepository().ListAll(offset, limit)
	if err != nil {
		log.Printf("admin list automations failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load automations")
	}
	return c.JSON(fiber.Map{"automations": automations})
}

// HandleAdminApproveAutomation publishes a listing and notifies the seller.
func HandleAdminApproveAutomation(c *fiber.Ctx) error {
	automationRepo := repository.GetGlobalFactory().GetAutomationRepository()
	automation, err := automationRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	if err := automationRepo.SetApproved(automation.ID); err != nil {
		log.Printf("approve automation %d failed: %v", automation.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not approve automation")
	}

	if seller, err := repository.GetGlobalFactory().GetUserRepository().GetByID(automation.CreatorID); err == nil {
		go func(email, name, title string) {
			_ = mail.SendAutomationApprovedMail(email, name, title)
		}(seller.Email, seller.Name, automation.Title)
	}

	_ = cache.Delete(adminStatsCacheKey)
	return c.JSON(fiber.Map{"ok": true})
}

// HandleAdminRejectAutomation soft-deletes a listing that should not go live.
func HandleAdminRejectAutomation(c *fiber.Ctx) error {
	automationRepo := repository.GetGlobalFactory().GetAutomationRepository()
	automation, err := automationRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	if err := automationRepo.Delete(automation.ID); err != nil {
		log.Printf("reject automation %d failed: %v", automation.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not reject automation")
	}

	_ = cache.Delete(adminStatsCacheKey)
	return c.JSON(fiber.Map{"ok": true})
}

// HandleAdminListUsers lists accounts for moderation.
func HandleAdminListUsers(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	userRepo := repository.GetGlobalFactory().GetUserRepository()
	users, err := userRepo.List(offset, limit)
	if err != nil {
		log.Printf("admin list users failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load users")
	}
	total, err := userRepo.Count()
	if err != nil {
		log.Printf("admin count users failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load users")
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

type adminStats struct {
	Users              int64 `json:"users"`
	Automations        int64 `json:"automations"`
	PendingAutomations int64 `json:"pending_automations"`
	Subscriptions      int64 `json:"subscriptions"`
}

// HandleAdminStats returns aggregate marketplace counters, cached briefly to
// keep the dashboard cheap.
func HandleAdminStats(c *fiber.Ctx) error {
	if cached, err := cache.Get(adminStatsCacheKey); err == nil && cached != "" {
		var stats adminStats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return c.JSON(stats)
		}
	}

	repos := repository.GetGlobalRepositories()
	var stats adminStats
	var err error
	if stats.Users, err = repos.User.Count(); err != nil {
		log.Printf("admin stats: user count failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load stats")
	}
	if stats.Automations, err = repos.Automation.Count(); err != nil {
		log.Printf("admin stats: automation count failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load stats")
	}
	if stats.PendingAutomations, err = repos.Automation.CountPending(); err != nil {
		log.Printf("admin stats: pending count failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load stats")
	}
	if stats.Subscriptions, err = repos.Subscription.Count(); err != nil {
		log.Printf("admin stats: subscription count failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load stats")
	}

	if encoded, err := json.Marshal(stats); err == nil {
		_ = cache.Set(adminStatsCacheKey, string(encoded), adminStatsCacheTTL)
	}

	return c.JSON(stats)
}
