package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func signHS256(t *testing.T, secret []byte, claims map[string]any) string {
	t.Helper()
	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	pl := base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(hdr + "." + pl))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return hdr + "." + pl + "." + sig
}

func TestVerifyDevToken(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	pr, err := v.Verify("t_acme:planner")
	if err != nil {
		t.Fatalf("dev verify: %v", err)
	}
	if pr.Tenant != "t_acme" || pr.Role != "planner" {
		t.Fatalf("principal: %+v", pr)
	}
	if _, err := v.Verify("garbage"); err == nil {
		t.Fatal("expected error for malformed dev token")
	}
}

func TestVerifyHMACToken(t *testing.T) {
	secret := []byte("topsecret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, TenantClaim: "tenant", RoleClaim: "role"}
	tok := signHS256(t, secret, map[string]any{"tenant": "t_acme", "role": "Admin"})
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("hmac verify: %v", err)
	}
	if pr.Tenant != "t_acme" || pr.Role != "admin" {
		t.Fatalf("principal: %+v", pr)
	}

	bad := signHS256(t, []byte("wrong"), map[string]any{"tenant": "t_acme", "role": "admin"})
	if _, err := v.Verify(bad); err == nil {
		t.Fatal("expected bad signature error")
	}

	noTenant := signHS256(t, secret, map[string]any{"role": "admin"})
	if _, err := v.Verify(noTenant); err == nil {
		t.Fatal("expected missing tenant error")
	}
}
