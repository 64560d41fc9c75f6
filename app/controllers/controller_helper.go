package controllers

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/flowmarkt/flowmarkt/internal/pkg/env"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

var slugScrubPattern = regexp.MustCompile(`[^a-z0-9]+`)

// requestBaseURL resolves the public base URL for redirect targets. A
// configured PUBLIC_DOMAIN wins over whatever host the request came in on.
func requestBaseURL(c *fiber.Ctx) string {
	if base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"); base != "" {
		return base
	}
	return strings.TrimRight(c.BaseURL(), "/")
}

// parsePagination reads page/per_page query params into an offset and limit.
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("per_page", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return (page - 1) * limit, limit
}

// slugify turns a listing title into a URL-safe slug.
func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugScrubPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func jsonError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}
