package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/app/repository"
)

// HandleListCategories returns all catalog categories.
func HandleListCategories(c *fiber.Ctx) error {
	categories, err := repository.GetGlobalFactory().GetCategoryRepository().GetAll()
	if err != nil {
		log.Printf("list categories failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load categories")
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// HandleListAutomations returns the approved catalog, filterable by category,
// search query and sort order.
func HandleListAutomations(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	filter := repository.AutomationFilter{
		CategorySlug: c.Query("category"),
		Query:        c.Query("q"),
		Sort:         c.Query("sort"),
		Offset:       offset,
		Limit:        limit,
	}

	automations, total, err := repository.GetGlobalFactory().GetAutomationRepository().ListApproved(filter)
	if err != nil {
		log.Printf("list automations failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load automations")
	}

	return c.JSON(fiber.Map{
		"automations": automations,
		"total":       total,
	})
}

// HandleGetAutomation returns one approved listing by slug.
func HandleGetAutomation(c *fiber.Ctx) error {
	slug := c.Params("slug")
	automation, err := repository.GetGlobalFactory().GetAutomationRepository().GetBySlug(slug)
	if err != nil || !automation.IsApproved {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}
	return c.JSON(automation)
}

// HandleListAutomationReviews returns reviews for one approved listing.
func HandleListAutomationReviews(c *fiber.Ctx) error {
	slug := c.Params("slug")
	automation, err := repository.GetGlobalFactory().GetAutomationRepository().GetBySlug(slug)
	if err != nil || !automation.IsApproved {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	offset, limit := parsePagination(c)
	reviewRepo := repository.GetGlobalFactory().GetReviewRepository()
	reviews, err := reviewRepo.GetByAutomationID(automation.ID, offset, limit)
	if err != nil {
		log.Printf("list reviews failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load reviews")
	}
	total, err := reviewRepo.CountByAutomationID(automation.ID)
	if err != nil {
		log.Printf("count reviews failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load reviews")
	}

	return c.JSON(fiber.Map{
		"reviews":    reviews,
		"total":      total,
		"avg_rating": automation.AvgRating,
	})
}
