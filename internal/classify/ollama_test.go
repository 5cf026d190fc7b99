package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"chatwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func padelScenario() *domain.Scenario {
	return &domain.Scenario{
		Name:   "padel",
		Prompt: "Decide whether the message is a padel game invite.",
		Schema: domain.Schema{Fields: []domain.FieldSpec{
			{Name: "is_game_invite", Type: domain.FieldBool, Required: true},
			{Name: "confidence", Type: domain.FieldString, Required: true,
				Enum: []string{"HIGH", "MEDIUM", "LOW"}},
			{Name: "reasoning", Type: domain.FieldString, Required: true},
		}},
		ConfidenceField: "confidence",
		ReasoningField:  "reasoning",
		KeepField:       "is_game_invite",
	}
}

// fakeOllama serves /api/chat returning the given message content.
func fakeOllama(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/chat":
			var req ollamaRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.Stream {
				t.Error("classification must not stream")
			}
			if req.Format == nil {
				t.Error("structured-output format missing from request")
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}
			json.NewEncoder(w).Encode(ollamaResponse{
				Message: ollamaMsg{Role: "assistant", Content: content},
				Done:    true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaClassify(t *testing.T) {
	srv := fakeOllama(t, `{"is_game_invite": true, "confidence": "HIGH", "reasoning": "explicit invite"}`)
	defer srv.Close()

	c := NewOllama(OllamaConfig{APIBase: srv.URL, Model: "test", Logger: testLogger()}, padelScenario())

	res, err := c.Classify(context.Background(), "looking for 2 players tonight, level C1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Bool("is_game_invite") || res.String("confidence") != "HIGH" {
		t.Fatalf("unexpected result: %v", res)
	}
}

func TestOllamaClassifyFencedJSON(t *testing.T) {
	srv := fakeOllama(t, "```json\n{\"is_game_invite\": false, \"confidence\": \"LOW\", \"reasoning\": \"chit-chat\"}\n```")
	defer srv.Close()

	c := NewOllama(OllamaConfig{APIBase: srv.URL, Model: "test", Logger: testLogger()}, padelScenario())

	res, err := c.Classify(context.Background(), "good morning everyone")
	if err != nil {
		t.Fatal(err)
	}
	if res.Bool("is_game_invite") {
		t.Fatalf("unexpected result: %v", res)
	}
}

func TestOllamaClassifyRejectsBadResponse(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "I think this is probably a game invite."},
		{"schema violation", `{"is_game_invite": true, "confidence": "MAYBE", "reasoning": "x"}`},
		{"missing required", `{"is_game_invite": true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeOllama(t, tc.content)
			defer srv.Close()

			c := NewOllama(OllamaConfig{APIBase: srv.URL, Model: "test", Logger: testLogger()}, padelScenario())
			if _, err := c.Classify(context.Background(), "msg"); err == nil {
				t.Fatal("want error")
			}
		})
	}
}

func TestOllamaHealthy(t *testing.T) {
	srv := fakeOllama(t, "{}")
	defer srv.Close()

	c := NewOllama(OllamaConfig{APIBase: srv.URL, Model: "test", Logger: testLogger()}, padelScenario())
	if err := c.Healthy(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv.Close()
	if err := c.Healthy(context.Background()); err == nil {
		t.Fatal("want error once the server is gone")
	}
}

func TestDecodeObject(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantKey string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, "a", false},
		{"fenced", "```json\n{\"a\": 1}\n```", "a", false},
		{"prose wrapped", `Here you go: {"a": 1} hope that helps`, "a", false},
		{"no object", "no structured data here", "", true},
		{"broken json", `{"a": `, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, err := decodeObject(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := obj[tc.wantKey]; !ok {
				t.Fatalf("missing key %q in %v", tc.wantKey, obj)
			}
		})
	}
}
