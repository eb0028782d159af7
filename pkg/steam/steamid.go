package steam

import (
	"regexp"
)

var claimedIDFormat = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d{17})$`)

// ParseClaimedID extracts the 17 digit SteamID64 from an OpenID claimed_id.
func ParseClaimedID(claimedID string) (string, bool) {
	m := claimedIDFormat.FindStringSubmatch(claimedID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DefaultName is the display name used when the profile lookup fails.
func DefaultName(steamID string) string {
	return ProviderName + " User " + steamID
}

// ProfileLink returns the public community profile URL of steamID.
func ProfileLink(steamID string) string {
	return "https://steamcommunity.com/profiles/" + steamID
}
