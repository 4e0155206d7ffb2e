package upstream

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/auth"
	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/store"
)

// Antigravity session signatures are only valid for the account that
// issued them. The client records signature -> credential fingerprint on
// responses and pins follow-up requests carrying a known signature to the
// same credential instead of round-robin.

// WithSignatureStore enables session pinning.
func (c *Client) WithSignatureStore(s *store.SignatureStore) *Client {
	c.signatures = s
	return c
}

func credFingerprint(cred auth.Credential) string {
	sum := sha256.Sum256([]byte(cred.Key))
	return hex.EncodeToString(sum[:8])
}

// requestSignature extracts the first thought signature from an
// Antigravity request body.
func requestSignature(body []byte) string {
	for _, path := range []string{
		"request.contents.#.parts.#.thoughtSignature",
		"contents.#.parts.#.thoughtSignature",
	} {
		result := gjson.GetBytes(body, path)
		var found string
		result.ForEach(func(_, parts gjson.Result) bool {
			parts.ForEach(func(_, sig gjson.Result) bool {
				if sig.String() != "" {
					found = sig.String()
					return false
				}
				return true
			})
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// responseSignatures extracts every thought signature from an Antigravity
// response body.
func responseSignatures(body []byte) []string {
	var out []string
	for _, path := range []string{
		"response.candidates.#.content.parts.#.thoughtSignature",
		"candidates.#.content.parts.#.thoughtSignature",
	} {
		gjson.GetBytes(body, path).ForEach(func(_, parts gjson.Result) bool {
			parts.ForEach(func(_, sig gjson.Result) bool {
				if sig.String() != "" {
					out = append(out, sig.String())
				}
				return true
			})
			return true
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}

// pinCredential returns the credential that issued the session signature
// in body, when the store remembers one.
func (c *Client) pinCredential(p provider.Format, body []byte) (auth.Credential, bool) {
	if c.signatures == nil || p != provider.FormatAntigravity {
		return auth.Credential{}, false
	}
	sig := requestSignature(body)
	if sig == "" {
		return auth.Credential{}, false
	}
	account, ok := c.signatures.Get(sig)
	if !ok {
		return auth.Credential{}, false
	}
	for _, cred := range c.creds.GetAllCredentials() {
		if cred.Provider == p && credFingerprint(cred) == account {
			return cred, true
		}
	}
	logging.Debugf("antigravity session account no longer configured, falling back to rotation")
	return auth.Credential{}, false
}

// recordSignatures remembers which credential issued the signatures in a
// successful response.
func (c *Client) recordSignatures(p provider.Format, cred auth.Credential, body []byte) {
	if c.signatures == nil || p != provider.FormatAntigravity {
		return
	}
	account := credFingerprint(cred)
	for _, sig := range responseSignatures(body) {
		c.signatures.Put(sig, account)
	}
}
