package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aichat/internal/identity"
	"aichat/internal/pipeline"
	"aichat/internal/quota"
	"aichat/pkg/ai"
)

const testSecret = "test-secret"

type stubGenerator struct {
	reply string
	calls int
}

func (g *stubGenerator) Generate(context.Context, string, string, ai.Params) (string, error) {
	g.calls++
	return g.reply, nil
}

type openThrottle struct{}

func (openThrottle) Allow(string) bool { return true }

func newTestServer(t *testing.T, store *quota.MemoryStore, gen ai.Generator) *Server {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{
		Throttle: openThrottle{},
		Store:    store,
		Settings: func() pipeline.Settings {
			return pipeline.Settings{
				Provider:         "gemini",
				APIKey:           "test-key",
				Temperature:      0.2,
				DefaultMaxTokens: 512,
				RequestTimeout:   time.Second,
				QuestionMaxLen:   4000,
				AnswerMaxLen:     1800,
			}
		},
		Generator: func(pipeline.Settings) (ai.Generator, error) { return gen, nil },
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	verifier, err := identity.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return New(Config{Pipeline: p, Verifier: verifier})
}

func authorizedStore(identityID string) *quota.MemoryStore {
	store := quota.NewMemoryStore()
	store.PutAuthorization(quota.AuthorizationRecord{
		IdentityID: identityID,
		Active:     true,
		Models: []quota.ModelLimit{
			{ModelName: "gemini-2.0-flash", PromptLimit: 10, TokensPerPrompt: 256, Active: true, Position: 1},
		},
	})
	return store
}

func bearerFor(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, handler http.Handler, method, path, auth, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, payload
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, quota.NewMemoryStore(), &stubGenerator{})
	rec, payload := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("healthz failed: %d %v", rec.Code, payload)
	}
}

func TestCanLoad(t *testing.T) {
	srv := newTestServer(t, authorizedStore("user-1"), &stubGenerator{})

	_, payload := doJSON(t, srv.Router(), http.MethodGet, "/ai_chat/can_load", bearerFor(t, "user-1"), "")
	if payload["show"] != true {
		t.Fatalf("authorized user should see the widget: %v", payload)
	}

	_, payload = doJSON(t, srv.Router(), http.MethodGet, "/ai_chat/can_load", "", "")
	if payload["show"] != false {
		t.Fatalf("anonymous visitor should not see the widget: %v", payload)
	}

	_, payload = doJSON(t, srv.Router(), http.MethodGet, "/ai_chat/can_load", bearerFor(t, "stranger"), "")
	if payload["show"] != false {
		t.Fatalf("unauthorized user should not see the widget: %v", payload)
	}
}

func TestSendSuccess(t *testing.T) {
	gen := &stubGenerator{reply: `{"answer_md":"Here is the answer."}`}
	srv := newTestServer(t, authorizedStore("user-1"), gen)

	rec, payload := doJSON(t, srv.Router(), http.MethodPost, "/ai_chat/send",
		bearerFor(t, "user-1"), `{"question":"What is the return policy?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send must answer 200, got %d", rec.Code)
	}
	if payload["ok"] != true {
		t.Fatalf("expected ok=true: %v", payload)
	}
	if payload["reply"] != "Here is the answer." {
		t.Fatalf("reply mismatch: %v", payload["reply"])
	}
	if gen.calls != 1 {
		t.Fatalf("provider should be called once, got %d", gen.calls)
	}
}

func TestSendFailuresStillAnswer200(t *testing.T) {
	srv := newTestServer(t, authorizedStore("user-1"), &stubGenerator{reply: "ok"})
	router := srv.Router()

	cases := []struct {
		name string
		auth string
		body string
	}{
		{"anonymous", "", `{"question":"hi"}`},
		{"invalid token", "Bearer garbage", `{"question":"hi"}`},
		{"unauthorized identity", bearerFor(t, "stranger"), `{"question":"hi"}`},
		{"empty question", bearerFor(t, "user-1"), `{"question":"  "}`},
		{"malformed body", bearerFor(t, "user-1"), `{not json`},
	}
	for _, tc := range cases {
		rec, payload := doJSON(t, router, http.MethodPost, "/ai_chat/send", tc.auth, tc.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.name, rec.Code)
		}
		if payload["ok"] != false {
			t.Fatalf("%s: expected ok=false: %v", tc.name, payload)
		}
		reply, _ := payload["reply"].(string)
		if strings.TrimSpace(reply) == "" {
			t.Fatalf("%s: failure must carry a user-visible reply", tc.name)
		}
	}
}

func TestSendFieldAliases(t *testing.T) {
	gen := &stubGenerator{reply: `{"answer_md":"aliased"}`}
	srv := newTestServer(t, authorizedStore("user-1"), gen)
	router := srv.Router()

	for _, body := range []string{
		`{"message":"alias for question"}`,
		`{"question":"q","gemini_model":"gemini-2.0-flash"}`,
		`{"question":"q","model":"gemini-2.0-flash"}`,
		`{"question":"q","model_name":"gemini-2.0-flash"}`,
	} {
		_, payload := doJSON(t, router, http.MethodPost, "/ai_chat/send", bearerFor(t, "user-1"), body)
		if payload["ok"] != true {
			t.Fatalf("alias body %s must succeed: %v", body, payload)
		}
	}
}

func TestModels(t *testing.T) {
	srv := newTestServer(t, authorizedStore("user-1"), &stubGenerator{})
	router := srv.Router()

	_, payload := doJSON(t, router, http.MethodGet, "/ai_chat/models", bearerFor(t, "user-1"), "")
	if payload["ok"] != true {
		t.Fatalf("authorized user should list models: %v", payload)
	}
	if payload["default_model"] != "gemini-2.0-flash" {
		t.Fatalf("default model mismatch: %v", payload)
	}
	models, _ := payload["models"].([]any)
	if len(models) != 1 {
		t.Fatalf("expected one model, got %v", payload["models"])
	}

	_, payload = doJSON(t, router, http.MethodGet, "/ai_chat/models", "", "")
	if payload["ok"] != false {
		t.Fatalf("anonymous visitor gets no models: %v", payload)
	}
}

func TestModelsAuthorizedWithEmptyGrantList(t *testing.T) {
	store := quota.NewMemoryStore()
	store.PutAuthorization(quota.AuthorizationRecord{
		IdentityID: "user-1",
		Active:     true,
		Models:     []quota.ModelLimit{{ModelName: "retired", Active: false}},
	})
	srv := newTestServer(t, store, &stubGenerator{})

	_, payload := doJSON(t, srv.Router(), http.MethodGet, "/ai_chat/models", bearerFor(t, "user-1"), "")
	if payload["ok"] != true {
		t.Fatalf("authorized identity must get ok=true even without active grants: %v", payload)
	}
	models, _ := payload["models"].([]any)
	if len(models) != 0 {
		t.Fatalf("expected empty model list, got %v", payload["models"])
	}
}

func TestSendMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, quota.NewMemoryStore(), &stubGenerator{})
	rec, _ := doJSON(t, srv.Router(), http.MethodGet, "/ai_chat/send", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /ai_chat/send should be rejected, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, quota.NewMemoryStore(), &stubGenerator{})
	rec, _ := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("cors headers missing")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}
