package lifecycle

import (
	"strings"

	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

// Platform платформа клиента для инструкций по управлению подпиской.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"

	appStoreSubscriptionsURL   = "https://apps.apple.com/account/subscriptions"
	playStoreSubscriptionsURL  = "https://play.google.com/store/account/subscriptions"
	sandboxManagementURLNotice = "In sandbox/test mode, management URL may not be available."
)

// Management инструкции по управлению подпиской для клиента.
type Management struct {
	Details []string `json:"details"`
	// URL ссылка на нативные настройки подписки, если она известна.
	URL   string   `json:"url,omitempty"`
	Steps []string `json:"steps,omitempty"`
	Note  string   `json:"note,omitempty"`
}

// HasAccess сообщает, даёт ли клиент с таким состоянием доступ к праву entitlementID.
func HasAccess(info models.CustomerInfo, entitlementID string) bool {
	s, ok := info.Active[entitlementID]
	return ok && s != nil && s.IsActive
}

// ManagementInstructions формирует инструкции по управлению подпиской.
// Если managementURL не задан, возвращаются ручные шаги для платформы.
func ManagementInstructions(current *models.Snapshot, managementURL string, platform Platform) Management {
	var m Management
	if current != nil {
		expires := "Never"
		if current.ExpirationDate != nil {
			expires = FormatDate(current.ExpirationDate)
		}
		willRenew := "No"
		if current.WillRenew {
			willRenew = "Yes"
		}
		m.Details = []string{
			"Product: " + current.ProductIdentifier,
			"Expires: " + expires,
			"Will Renew: " + willRenew,
		}
	}

	if managementURL != "" {
		m.URL = managementURL
		m.Steps = []string{"Open subscription settings to cancel, change plan, or update payment method."}
		return m
	}

	m.Note = sandboxManagementURLNotice
	switch Platform(strings.ToLower(string(platform))) {
	case PlatformIOS:
		m.URL = appStoreSubscriptionsURL
		m.Steps = []string{
			"Open Settings app",
			"Tap your name at the top",
			`Tap "Subscriptions"`,
			"Find and tap this app",
		}
	default:
		m.URL = playStoreSubscriptionsURL
		m.Steps = []string{
			"Open Google Play Store",
			"Tap Menu → Subscriptions",
			"Find and tap this app",
		}
	}
	return m
}
