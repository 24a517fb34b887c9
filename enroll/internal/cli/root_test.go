package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testPrivateKey = "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk="
	testPublicKey  = "HIgo9xNzJMWLKASShiTqIybxZ0U3wGLiUeJ1PKf8ykw="
	testPeerKey    = "bmXOC+F1FxEMF9dyiK2H5/1SUtzH0JuVo51h2wPfgyo="
)

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "alice@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func enrollmentServer(t *testing.T, accessToken string, gotKey *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cf-Access-Jwt-Assertion") != accessToken {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"success":false,"errors":[{"code":403,"message":"bad token"}]}`))
			return
		}
		var body struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if gotKey != nil {
			*gotKey = body.Key
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result": map[string]any{
				"id":   "t.1",
				"name": body.Name,
				"config": map[string]any{
					"interface": map[string]any{
						"addresses": map[string]string{"v4": "172.16.0.2", "v6": "2606:4700:110:8a36::2"},
					},
					"peers": []map[string]any{{
						"public_key": testPeerKey,
						"endpoint":   map[string]string{"host": "engage.cloudflareclient.com:2408"},
					}},
				},
			},
		})
	}))
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRegisterWithPromptedKey(t *testing.T) {
	tok := mintToken(t, time.Now().Add(time.Hour))
	var gotKey string
	server := enrollmentServer(t, tok, &gotKey)
	defer server.Close()

	stdout, stderr, err := execute(t, testPrivateKey+"\n"+tok+"\n",
		"--prompt", "--endpoint", server.URL, "--team", "acme", "-n", "laptop")
	if err != nil {
		t.Fatalf("execute failed: %v\nstderr: %s", err, stderr)
	}

	if gotKey != testPublicKey {
		t.Errorf("expected registered key %s, got %s", testPublicKey, gotKey)
	}
	for _, want := range []string{
		"PrivateKey = " + testPrivateKey,
		"Address = 172.16.0.2/32",
		"Address = 2606:4700:110:8a36::2/128",
		"PublicKey = " + testPeerKey,
		"Endpoint = engage.cloudflareclient.com:2408",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in profile:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "https://acme.cloudflareaccess.com/warp") {
		t.Errorf("expected login instructions on stderr, got: %s", stderr)
	}
}

func TestRegisterWritesOutputFile(t *testing.T) {
	tok := mintToken(t, time.Now().Add(time.Hour))
	server := enrollmentServer(t, tok, nil)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "warp.conf")
	stdout, _, err := execute(t, tok+"\n", "--endpoint", server.URL, "-o", path, "--mtu", "0")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got: %s", stdout)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "[Interface]\nPrivateKey = ") {
		t.Errorf("unexpected file contents:\n%s", data)
	}
	if strings.Contains(string(data), "MTU =") {
		t.Errorf("mtu 0 should omit the MTU line")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}
}

func TestRegisterServiceFailure(t *testing.T) {
	server := enrollmentServer(t, "expected-token", nil)
	defer server.Close()

	tok := mintToken(t, time.Now().Add(time.Hour))
	stdout, _, err := execute(t, tok+"\n", "--endpoint", server.URL)
	if err == nil {
		t.Fatal("expected error from service rejection")
	}
	if !strings.Contains(err.Error(), "bad token") {
		t.Errorf("expected service message, got: %v", err)
	}
	if stdout != "" {
		t.Errorf("no profile should be printed on failure, got: %s", stdout)
	}
}

func TestRegisterRejectsExpiredToken(t *testing.T) {
	tok := mintToken(t, time.Now().Add(-time.Hour))
	_, _, err := execute(t, tok+"\n", "--endpoint", "http://127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expired token error, got: %v", err)
	}
}

func TestRegisterRejectsBadPromptedKey(t *testing.T) {
	_, _, err := execute(t, "garbage\n", "--prompt", "--endpoint", "http://127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "parse private key") {
		t.Errorf("expected private key error, got: %v", err)
	}
}

func TestPubkeyCommand(t *testing.T) {
	stdout, _, err := execute(t, testPrivateKey+"\n", "pubkey")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if strings.TrimSpace(stdout) != testPublicKey {
		t.Errorf("expected %s, got %s", testPublicKey, stdout)
	}
}
