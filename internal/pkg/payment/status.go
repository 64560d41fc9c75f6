package payment

import (
	"strings"

	"github.com/flowmarkt/flowmarkt/app/models"
)

// MapGatewayStatus maps a gateway subscription status string to the local
// subscription status. past_due deliberately maps to active so billing
// retries stay invisible to the buyer; every unrecognized status is treated
// as canceled.
func MapGatewayStatus(gatewayStatus string) string {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "active":
		return models.SubscriptionStatusActive
	case "past_due":
		return models.SubscriptionStatusActive
	default:
		return models.SubscriptionStatusCanceled
	}
}
