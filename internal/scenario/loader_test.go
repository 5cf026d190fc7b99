package scenario

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chatwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

const padelJSON = `{
  "prompt": "You review WhatsApp messages from padel groups and decide whether each one is a game invite matching the user's preferences.",
  "response_schema": {
    "properties": {
      "is_game_invite": {"type": "boolean", "description": "true when the message invites players to a game"},
      "level_match": {"type": "boolean"},
      "confidence": {"type": "string", "enum": ["HIGH", "MEDIUM", "LOW"]},
      "reasoning": {"type": "string"},
      "location": {"type": "string", "default": ""}
    },
    "required": ["is_game_invite", "confidence", "reasoning"]
  },
  "groups": ["Padel TLV", "Padel North"],
  "keep_field": "is_game_invite"
}`

const jobsYAML = `prompt: |
  Extract hiring signals from tech community groups.
response_schema:
  properties:
    is_job_post:
      type: boolean
    role:
      type: string
    confidence:
      type: string
      enum: [HIGH, MEDIUM, LOW]
    reasoning:
      type: string
  required: [is_job_post, confidence, reasoning]
groups:
  - Tech Jobs IL
confidence_field: confidence
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "padel.json", padelJSON)
	writeFile(t, dir, "jobs.yaml", jobsYAML)
	writeFile(t, dir, "notes.txt", "ignored")

	scenarios, err := LoadDirectory(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("want 2 scenarios, got %d", len(scenarios))
	}

	byName := map[string]domain.Scenario{}
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}

	padel := byName["padel"]
	if padel.KeepField != "is_game_invite" {
		t.Errorf("keep_field: %q", padel.KeepField)
	}
	if padel.ConfidenceField != "confidence" || padel.ReasoningField != "reasoning" {
		t.Errorf("field name defaults not applied: %q %q", padel.ConfidenceField, padel.ReasoningField)
	}
	if len(padel.Groups) != 2 {
		t.Errorf("groups: %v", padel.Groups)
	}

	// Schema field order follows file declaration order.
	want := []string{"is_game_invite", "level_match", "confidence", "reasoning", "location"}
	if len(padel.Schema.Fields) != len(want) {
		t.Fatalf("fields: %d", len(padel.Schema.Fields))
	}
	for i, name := range want {
		if padel.Schema.Fields[i].Name != name {
			t.Fatalf("field %d: want %s, got %s", i, name, padel.Schema.Fields[i].Name)
		}
	}

	jobs := byName["jobs"]
	if jobs.Prompt == "" || len(jobs.Schema.Fields) != 4 {
		t.Errorf("yaml scenario not loaded correctly: %+v", jobs)
	}
}

func TestLoadDirectorySkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", padelJSON)
	writeFile(t, dir, "no_prompt.json", `{"response_schema": {"properties": {"a": {"type": "string"}}}, "groups": ["g"]}`)
	writeFile(t, dir, "no_groups.json", `{"prompt": "p", "response_schema": {"properties": {"a": {"type": "string"}}}}`)
	writeFile(t, dir, "bad_keep.json", `{"prompt": "p", "groups": ["g"], "keep_field": "role",
	  "response_schema": {"properties": {"role": {"type": "string"}}}}`)
	writeFile(t, dir, "garbage.yaml", "::not yaml::{")

	scenarios, err := LoadDirectory(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "good" {
		t.Fatalf("want only the valid scenario, got %v", scenarios)
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	scenarios, err := LoadDirectory(filepath.Join(t.TempDir(), "nope"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 0 {
		t.Fatalf("want none, got %d", len(scenarios))
	}
}
