package controllers

import (
	"fmt"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowmarkt/flowmarkt/app/models"
	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/thumbnail"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

const maxThumbnailUploadSize = 5 << 20 // 5 MiB

type automationRequest struct {
	Title            string  `json:"title"`
	ShortDescription string  `json:"short_description"`
	LongDescription  string  `json:"long_description"`
	CategorySlug     string  `json:"category"`
	PriceMonthly     float64 `json:"price_monthly"`
	SetupFee         float64 `json:"setup_fee"`
	Platform         string  `json:"platform"`
	Tags             string  `json:"tags"`
}

// HandleSellerListAutomations returns the seller's own listings, approved or not.
func HandleSellerListAutomations(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	automations, err := repository.GetGlobalFactory().GetAutomationRepository().GetByCreatorID(userCtx.UserID)
	if err != nil {
		log.Printf("list seller automations for user %d failed: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load automations")
	}
	return c.JSON(fiber.Map{"automations": automations})
}

// HandleSellerCreateAutomation creates an unapproved listing.
func HandleSellerCreateAutomation(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req automationRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	automation := &models.Automation{
		UUID:             uuid.NewString(),
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		CreatorID:        userCtx.UserID,
		PriceMonthly:     req.PriceMonthly,
		SetupFee:         req.SetupFee,
		Platform:         req.Platform,
		Tags:             req.Tags,
	}
	// Slug suffix keeps titles from colliding across sellers.
	automation.Slug = fmt.Sprintf("%s-%s", slugify(req.Title), automation.UUID[:8])

	if err := applyCategory(automation, req.CategorySlug); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "unknown category")
	}
	if err := automation.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repository.GetGlobalFactory().GetAutomationRepository().Create(automation); err != nil {
		log.Printf("create automation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create automation")
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

// HandleSellerUpdateAutomation edits an own listing. Any edit pulls the
// listing back out of the public catalog until it is re-approved.
func HandleSellerUpdateAutomation(c *fiber.Ctx) error {
	automation, err := sellerOwnAutomation(c)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	var req automationRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	automation.Title = req.Title
	automation.ShortDescription = req.ShortDescription
	automation.LongDescription = req.LongDescription
	automation.PriceMonthly = req.PriceMonthly
	automation.SetupFee = req.SetupFee
	automation.Platform = req.Platform
	automation.Tags = req.Tags
	automation.IsApproved = false

	if err := applyCategory(automation, req.CategorySlug); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "unknown category")
	}
	if err := automation.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repository.GetGlobalFactory().GetAutomationRepository().Update(automation); err != nil {
		log.Printf("update automation %d failed: %v", automation.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not update automation")
	}

	return c.JSON(automation)
}

// HandleSellerDeleteAutomation soft-deletes an own listing.
func HandleSellerDeleteAutomation(c *fiber.Ctx) error {
	automation, err := sellerOwnAutomation(c)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	if err := repository.GetGlobalFactory().GetAutomationRepository().Delete(automation.ID); err != nil {
		log.Printf("delete automation %d failed: %v", automation.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not delete automation")
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleSellerUploadThumbnail stores a resized listing thumbnail in the
// object store and saves its public URL.
func HandleSellerUploadThumbnail(c *fiber.Ctx) error {
	automation, err := sellerOwnAutomation(c)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "automation not found")
	}

	cfg, err := thumbnail.LoadConfig()
	if err != nil || !cfg.IsEnabled() {
		return jsonError(c, fiber.StatusServiceUnavailable, "thumbnails_unconfigured", "thumbnail storage is not configured")
	}

	fileHeader, err := c.FormFile("thumbnail")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "thumbnail file is required")
	}
	if fileHeader.Size > maxThumbnailUploadSize {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", "thumbnail must be at most 5 MiB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "could not read thumbnail file")
	}
	defer file.Close()
	raw, err := io.ReadAll(io.LimitReader(file, maxThumbnailUploadSize))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "could not read thumbnail file")
	}

	storage, err := thumbnail.NewStorage(cfg)
	if err != nil {
		log.Printf("thumbnail storage init failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "thumbnail storage unavailable")
	}

	url, err := storage.ProcessAndUpload(c.Context(), raw, automation.UUID)
	if err != nil {
		log.Printf("thumbnail upload for automation %d failed: %v", automation.ID, err)
		return jsonError(c, fiber.StatusUnprocessableEntity, "upload_failed", "could not process thumbnail image")
	}

	automation.ThumbnailURL = &url
	if err := repository.GetGlobalFactory().GetAutomationRepository().Update(automation); err != nil {
		log.Printf("saving thumbnail url for automation %d failed: %v", automation.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not save thumbnail")
	}

	return c.JSON(fiber.Map{"thumbnail_url": url})
}

// sellerOwnAutomation resolves the :uuid route param to a listing owned by
// the session user.
func sellerOwnAutomation(c *fiber.Ctx) (*models.Automation, error) {
	userCtx := usercontext.GetUserContext(c)
	automation, err := repository.GetGlobalFactory().GetAutomationRepository().GetByUUID(c.Params("uuid"))
	if err != nil {
		return nil, err
	}
	if automation.CreatorID != userCtx.UserID && !userCtx.IsAdmin() {
		return nil, gorm.ErrRecordNotFound
	}
	return automation, nil
}

func applyCategory(automation *models.Automation, categorySlug string) error {
	if categorySlug == "" {
		automation.CategoryID = nil
		return nil
	}
	category, err := repository.GetGlobalFactory().GetCategoryRepository().GetBySlug(categorySlug)
	if err != nil {
		return err
	}
	automation.CategoryID = &category.ID
	return nil
}
