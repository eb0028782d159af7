package steam

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxProfileBytes = 256 << 10

type profileDocument struct {
	XMLName xml.Name `xml:"profile"`
	SteamID string   `xml:"steamID"`
}

// DisplayName returns the public persona name of steamID, or DefaultName
// if the profile cannot be fetched or parsed.
func (v *Verifier) DisplayName(ctx context.Context, steamID string) string {
	name, err := v.fetchProfileName(ctx, steamID)
	if err != nil {
		v.logger.DebugContext(ctx, "steam profile lookup failed", "steam_id", steamID, "error", err)
		return DefaultName(steamID)
	}
	return name
}

func (v *Verifier) fetchProfileName(ctx context.Context, steamID string) (string, error) {
	u := strings.TrimSuffix(v.profileURL, "/") + "/" + steamID + "/?xml=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile returned status %d", resp.StatusCode)
	}

	var doc profileDocument
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&doc); err != nil {
		return "", fmt.Errorf("decoding profile: %w", err)
	}
	name := strings.TrimSpace(doc.SteamID)
	if name == "" {
		return "", fmt.Errorf("profile has no name")
	}
	return name, nil
}
