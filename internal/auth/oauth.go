package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/bridgekit/llm-bridge/internal/provider"
)

// OAuthApp identifies the OAuth client a provider family's refresh tokens
// belong to.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Scopes       []string
}

// OAuthRefreshFunc builds a RefreshFunc that treats the credential's key as
// a refresh token and exchanges it at the app's token endpoint.
func OAuthRefreshFunc(app OAuthApp) RefreshFunc {
	return func(ctx context.Context, cred Credential) (string, time.Duration, error) {
		conf := &oauth2.Config{
			ClientID:     app.ClientID,
			ClientSecret: app.ClientSecret,
			Endpoint:     app.Endpoint,
			Scopes:       app.Scopes,
		}
		src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.Key})
		tok, err := src.Token()
		if err != nil {
			return "", 0, fmt.Errorf("token refresh failed: %w", err)
		}
		ttl := time.Until(tok.Expiry)
		if tok.Expiry.IsZero() {
			ttl = time.Hour
		}
		return tok.AccessToken, ttl, nil
	}
}

// OAuthRefreshers wires refresh funcs for provider families whose
// credentials are refresh tokens. Client ids come from the environment;
// families without one pass their key through unchanged.
func OAuthRefreshers() map[provider.Format]RefreshFunc {
	out := make(map[provider.Format]RefreshFunc)

	if id := os.Getenv("LLM_BRIDGE_GOOGLE_CLIENT_ID"); id != "" {
		out[provider.FormatAntigravity] = OAuthRefreshFunc(OAuthApp{
			ClientID:     id,
			ClientSecret: os.Getenv("LLM_BRIDGE_GOOGLE_CLIENT_SECRET"),
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/cloud-platform",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		})
	}
	if id := os.Getenv("LLM_BRIDGE_OPENAI_CLIENT_ID"); id != "" {
		out[provider.FormatOpenAIWeb] = OAuthRefreshFunc(OAuthApp{
			ClientID: id,
			Endpoint: oauth2.Endpoint{
				TokenURL:  "https://auth.openai.com/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		})
	}
	return out
}
