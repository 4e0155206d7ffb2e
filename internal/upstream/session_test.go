package upstream

import (
	"testing"

	"github.com/bridgekit/llm-bridge/internal/auth"
	"github.com/bridgekit/llm-bridge/internal/provider"
)

func TestRequestSignature(t *testing.T) {
	body := `{"model":"gemini-3-pro","request":{"contents":[
		{"role":"user","parts":[{"text":"hi"}]},
		{"role":"model","parts":[{"text":"thinking...","thought":true,"thoughtSignature":"sig-1"}]}
	]}}`
	if got := requestSignature([]byte(body)); got != "sig-1" {
		t.Fatalf("signature = %q", got)
	}
}

func TestRequestSignatureUnwrappedBody(t *testing.T) {
	body := `{"contents":[{"role":"model","parts":[{"thought":true,"thoughtSignature":"sig-2"}]}]}`
	if got := requestSignature([]byte(body)); got != "sig-2" {
		t.Fatalf("signature = %q", got)
	}
}

func TestRequestSignatureAbsent(t *testing.T) {
	body := `{"request":{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}}`
	if got := requestSignature([]byte(body)); got != "" {
		t.Fatalf("signature = %q, want empty", got)
	}
}

func TestResponseSignatures(t *testing.T) {
	body := `{"response":{"candidates":[{"content":{"role":"model","parts":[
		{"text":"a","thought":true,"thoughtSignature":"s1"},
		{"text":"answer"},
		{"text":"b","thought":true,"thoughtSignature":"s2"}
	]}}]}}`
	sigs := responseSignatures([]byte(body))
	if len(sigs) != 2 || sigs[0] != "s1" || sigs[1] != "s2" {
		t.Fatalf("signatures = %v", sigs)
	}
}

func TestCredFingerprintStable(t *testing.T) {
	a := auth.Credential{Key: "token-a"}
	if credFingerprint(a) != credFingerprint(auth.Credential{Key: "token-a"}) {
		t.Fatal("fingerprint must be deterministic")
	}
	if credFingerprint(a) == credFingerprint(auth.Credential{Key: "token-b"}) {
		t.Fatal("distinct keys must not collide")
	}
	if len(credFingerprint(a)) != 16 {
		t.Fatalf("fingerprint length = %d", len(credFingerprint(a)))
	}
}

func TestPinCredentialRequiresStore(t *testing.T) {
	c := NewClient(nil, nil)
	body := []byte(`{"contents":[{"role":"model","parts":[{"thought":true,"thoughtSignature":"sig"}]}]}`)
	if _, pinned := c.pinCredential(provider.FormatAntigravity, body); pinned {
		t.Fatal("pinning without a store must be a no-op")
	}
}
