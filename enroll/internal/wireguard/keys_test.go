package wireguard

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/crypto/curve25519"
)

const (
	testPrivateKey = "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk="
	testPublicKey  = "HIgo9xNzJMWLKASShiTqIybxZ0U3wGLiUeJ1PKf8ykw="
)

func TestParsePrivateKeyDerivesPublicKey(t *testing.T) {
	kp, err := ParsePrivateKey(testPrivateKey)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}

	priv := kp.PrivateKey
	want, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		t.Fatalf("X25519 failed: %v", err)
	}
	if !bytes.Equal(kp.PublicKey[:], want) {
		t.Errorf("public key mismatch: got %s", kp.PublicKey)
	}
	if kp.PublicKey.String() != testPublicKey {
		t.Errorf("expected %s, got %s", testPublicKey, kp.PublicKey)
	}

	again, err := ParsePrivateKey(testPrivateKey)
	if err != nil {
		t.Fatalf("second ParsePrivateKey failed: %v", err)
	}
	if again.PublicKey != kp.PublicKey {
		t.Errorf("public key not deterministic: %s vs %s", again.PublicKey, kp.PublicKey)
	}
}

func TestParsePrivateKeyTrimsWhitespace(t *testing.T) {
	kp, err := ParsePrivateKey("  " + testPrivateKey + "\r\n")
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if kp.PrivateKey.String() != testPrivateKey {
		t.Errorf("expected %s, got %s", testPrivateKey, kp.PrivateKey)
	}
}

func TestParsePrivateKeyInvalid(t *testing.T) {
	for _, in := range []string{"", "not-base64!!", "c2hvcnQ="} {
		_, err := ParsePrivateKey(in)
		if err == nil {
			t.Errorf("expected error for %q", in)
			continue
		}
		if !strings.Contains(err.Error(), "parse private key") {
			t.Errorf("expected 'parse private key' in error, got: %v", err)
		}
	}
}

func TestGenerateKeyPair(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	if a.PrivateKey == b.PrivateKey {
		t.Error("two generated keys are identical")
	}
	if a.PublicKey != a.PrivateKey.PublicKey() {
		t.Error("public key does not match private key")
	}
}

func TestBuildConfig(t *testing.T) {
	kp, err := ParsePrivateKey(testPrivateKey)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	peer, _ := GenerateKeyPair()

	cfg, err := buildConfig(Config{
		InterfaceName: "wg-test",
		PrivateKey:    kp.PrivateKey,
		PeerPublicKey: peer.PublicKey.String(),
		PeerEndpoint:  "162.159.193.1:2408",
		AllowedIPs:    []string{"0.0.0.0/0", "10.0.0.0/8"},
	})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if len(cfg.Peers) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(cfg.Peers))
	}
	p := cfg.Peers[0]
	if p.PublicKey != peer.PublicKey {
		t.Errorf("peer key mismatch")
	}
	if p.Endpoint.Port != 2408 {
		t.Errorf("expected port 2408, got %d", p.Endpoint.Port)
	}
	if len(p.AllowedIPs) != 2 || p.AllowedIPs[1].String() != "10.0.0.0/8" {
		t.Errorf("unexpected allowed ips: %v", p.AllowedIPs)
	}
}

func TestBuildConfigRejectsBadPeerKey(t *testing.T) {
	_, err := buildConfig(Config{
		PeerPublicKey: "nope",
		PeerEndpoint:  "127.0.0.1:2408",
	})
	if err == nil || !strings.Contains(err.Error(), "parse peer public key") {
		t.Errorf("expected peer key error, got: %v", err)
	}
}
