package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/flowmarkt/flowmarkt/app/models"
	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

var (
	reviewsRepo       repository.ReviewRepository
	reviewAutomations repository.AutomationRepository
)

// InitializeReviewController wires the review handlers against the global
// repository factory.
func InitializeReviewController() {
	SetReviewRepositories(
		repository.GetGlobalFactory().GetReviewRepository(),
		repository.GetGlobalFactory().GetAutomationRepository(),
	)
}

// SetReviewRepositories injects repository implementations (tests use this).
func SetReviewRepositories(reviews repository.ReviewRepository, automations repository.AutomationRepository) {
	reviewsRepo = reviews
	reviewAutomations = automations
}

// HandleCreateReview stores one review per buyer and automation and refreshes
// the listing's average rating.
func HandleCreateReview(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	automation, err := reviewAutomations.GetBySlug(c.Params("slug"))
	if err != nil || !automation.IsApproved {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	var req createReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	review := &models.Review{
		AutomationID: automation.ID,
		UserID:       userCtx.UserID,
		Rating:       req.Rating,
		Comment:      req.Comment,
	}
	if err := review.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "rating must be between 1 and 5")
	}

	if err := reviewsRepo.Create(review); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, fiber.StatusConflict, "already_reviewed", "you already reviewed this automation")
		}
		log.Printf("create review failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not store review")
	}

	if _, err := reviewsRepo.RecalculateAverageRating(automation.ID); err != nil {
		log.Printf("recalculate avg rating for automation %d failed: %v", automation.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}
