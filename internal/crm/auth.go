package crm

import (
	"fmt"

	"github.com/rendis/cog-hubspot/pkg/schema"
)

// Auth holds the credentials a HubSpot client is built from. Either APIKey
// or the OAuth quartet (ClientID, ClientSecret, RefreshToken, RedirectURI) is set.
type Auth struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	RedirectURI  string
}

// Auth field keys as they appear in the cog manifest and in per-call auth maps.
const (
	AuthKeyAPIKey       = "apiKey"
	AuthKeyClientID     = "clientId"
	AuthKeyClientSecret = "clientSecret"
	AuthKeyRefreshToken = "refreshToken"
	AuthKeyRedirectURI  = "redirectUri"
)

// AuthFields describes the credentials the cog accepts.
func AuthFields() []schema.FieldDefinition {
	return []schema.FieldDefinition{
		{Key: AuthKeyAPIKey, Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "API Key"},
		{Key: AuthKeyClientID, Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "OAuth Client ID"},
		{Key: AuthKeyClientSecret, Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "OAuth Client Secret"},
		{Key: AuthKeyRefreshToken, Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "OAuth Refresh Token"},
		{Key: AuthKeyRedirectURI, Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "OAuth Redirect URI"},
	}
}

// AuthFromMap reads credentials from a loosely typed map. Non-string values are
// rendered with %v so numeric client IDs survive a JSON round trip.
func AuthFromMap(m map[string]any) Auth {
	get := func(key string) string {
		v, ok := m[key]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return Auth{
		APIKey:       get(AuthKeyAPIKey),
		ClientID:     get(AuthKeyClientID),
		ClientSecret: get(AuthKeyClientSecret),
		RefreshToken: get(AuthKeyRefreshToken),
		RedirectURI:  get(AuthKeyRedirectURI),
	}
}

// OAuth reports whether the credentials use the OAuth refresh flow.
func (a Auth) OAuth() bool {
	return a.RefreshToken != "" || a.ClientID != ""
}

// Validate checks that exactly one usable credential set is present.
func (a Auth) Validate() error {
	if a.OAuth() {
		var missing []string
		if a.ClientID == "" {
			missing = append(missing, AuthKeyClientID)
		}
		if a.ClientSecret == "" {
			missing = append(missing, AuthKeyClientSecret)
		}
		if a.RefreshToken == "" {
			missing = append(missing, AuthKeyRefreshToken)
		}
		if len(missing) > 0 {
			return schema.NewErrorf(schema.ErrCodeUnauthorized, "incomplete OAuth credentials").
				WithDetails(map[string]any{"missing": missing})
		}
		return nil
	}
	if a.APIKey == "" {
		return schema.NewError(schema.ErrCodeUnauthorized, "no HubSpot credentials: provide apiKey or OAuth client credentials")
	}
	return nil
}
