package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowmarkt/flowmarkt/app/models"
	"github.com/flowmarkt/flowmarkt/app/repository"
	"github.com/flowmarkt/flowmarkt/internal/pkg/usercontext"
)

// fakeReviewRepository lets tests drive the duplicate-key path without a DB.
type fakeReviewRepository struct {
	createErr      error
	created        []*models.Review
	recomputeCalls int
}

func (f *fakeReviewRepository) Create(review *models.Review) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, review)
	return nil
}

func (f *fakeReviewRepository) GetByAutomationID(automationID uint, offset, limit int) ([]models.Review, error) {
	return nil, nil
}

func (f *fakeReviewRepository) CountByAutomationID(automationID uint) (int64, error) {
	return int64(len(f.created)), nil
}

func (f *fakeReviewRepository) RecalculateAverageRating(automationID uint) (float64, error) {
	f.recomputeCalls++
	return 0, nil
}

// fakeAutomationCatalog serves a single approved listing by slug.
type fakeAutomationCatalog struct {
	automation *models.Automation
}

func (f *fakeAutomationCatalog) GetBySlug(slug string) (*models.Automation, error) {
	if f.automation != nil && f.automation.Slug == slug {
		return f.automation, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAutomationCatalog) Create(automation *models.Automation) error { return nil }
func (f *fakeAutomationCatalog) GetByID(id uint) (*models.Automation, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAutomationCatalog) GetByUUID(uuid string) (*models.Automation, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAutomationCatalog) GetByCreatorID(creatorID uint) ([]models.Automation, error) {
	return nil, nil
}
func (f *fakeAutomationCatalog) ListApproved(filter repository.AutomationFilter) ([]models.Automation, int64, error) {
	return nil, 0, nil
}
func (f *fakeAutomationCatalog) ListAll(offset, limit int) ([]models.Automation, error) {
	return nil, nil
}
func (f *fakeAutomationCatalog) Update(automation *models.Automation) error { return nil }
func (f *fakeAutomationCatalog) Delete(id uint) error                       { return nil }
func (f *fakeAutomationCatalog) Count() (int64, error)                      { return 0, nil }
func (f *fakeAutomationCatalog) CountPending() (int64, error)               { return 0, nil }
func (f *fakeAutomationCatalog) SetApproved(id uint) error                  { return nil }
func (f *fakeAutomationCatalog) IncrementInstallCount(id uint) error        { return nil }

func newReviewTestApp(t *testing.T, reviews *fakeReviewRepository) *fiber.App {
	t.Helper()

	catalog := &fakeAutomationCatalog{automation: &models.Automation{
		Title:      "Invoice Bot",
		Slug:       "invoice-bot",
		IsApproved: true,
	}}
	catalog.automation.ID = 10

	SetReviewRepositories(reviews, catalog)
	t.Cleanup(func() { SetReviewRepositories(nil, nil) })

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			UserID:     7,
			Username:   "buyer",
			Role:       models.ROLE_BUYER,
			IsLoggedIn: true,
		})
		return c.Next()
	})
	app.Post("/automations/:slug/reviews", HandleCreateReview)
	return app
}

func postReview(t *testing.T, app *fiber.App, slug string, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/automations/"+slug+"/reviews", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func TestCreateReviewStoresAndRecomputesRating(t *testing.T) {
	reviews := &fakeReviewRepository{}
	app := newReviewTestApp(t, reviews)

	status, _ := postReview(t, app, "invoice-bot", `{"rating":4,"comment":"solid"}`)

	assert.Equal(t, fiber.StatusCreated, status)
	require.Len(t, reviews.created, 1)
	assert.Equal(t, uint(10), reviews.created[0].AutomationID)
	assert.Equal(t, uint(7), reviews.created[0].UserID)
	assert.Equal(t, 1, reviews.recomputeCalls)
}

func TestCreateReviewDuplicateIsRejected(t *testing.T) {
	reviews := &fakeReviewRepository{createErr: gorm.ErrDuplicatedKey}
	app := newReviewTestApp(t, reviews)

	status, body := postReview(t, app, "invoice-bot", `{"rating":5,"comment":"again"}`)

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "already_reviewed", body["error"])
	// The rating must stay untouched when the insert is rejected.
	assert.Zero(t, reviews.recomputeCalls)
}

func TestCreateReviewRatingOutOfBounds(t *testing.T) {
	reviews := &fakeReviewRepository{}
	app := newReviewTestApp(t, reviews)

	status, _ := postReview(t, app, "invoice-bot", `{"rating":6}`)

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Empty(t, reviews.created)
	assert.Zero(t, reviews.recomputeCalls)
}

func TestCreateReviewUnknownAutomation(t *testing.T) {
	reviews := &fakeReviewRepository{}
	app := newReviewTestApp(t, reviews)

	status, _ := postReview(t, app, "missing", `{"rating":4}`)

	assert.Equal(t, fiber.StatusNotFound, status)
}
