package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"chatwatch/internal/dedup"
	"chatwatch/internal/domain"
	"chatwatch/internal/metrics"
	"chatwatch/internal/scenario"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeClassifier classifies by delegating to fn.
type fakeClassifier struct {
	fn func(text string) (domain.Result, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(text)
}

func (f *fakeClassifier) Healthy(ctx context.Context) error { return nil }

// fakeProvider returns the same classifier for every scenario.
type fakeProvider struct {
	cls domain.Classifier
}

func (p *fakeProvider) For(sc *domain.Scenario) (domain.Classifier, error) {
	return p.cls, nil
}

// fakeSource serves per-chat canned extractions.
type fakeSource struct {
	history map[string][]domain.RawMessage
	visible map[string][][]domain.RawMessage
	polls   map[string]int
	failing map[string]error
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Close() error                    { return nil }

func (f *fakeSource) LoadHistory(ctx context.Context, chatID string, scrolls int) ([]domain.RawMessage, error) {
	if err := f.failing[chatID]; err != nil {
		return nil, err
	}
	return f.history[chatID], nil
}

func (f *fakeSource) ExtractVisible(ctx context.Context, chatID string) ([]domain.RawMessage, error) {
	if err := f.failing[chatID]; err != nil {
		return nil, err
	}
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	seq := f.visible[chatID]
	n := f.polls[chatID]
	f.polls[chatID]++
	if n >= len(seq) {
		if len(seq) == 0 {
			return nil, nil
		}
		return seq[len(seq)-1], nil
	}
	return seq[n], nil
}

func msg(sender, text string) domain.RawMessage {
	return domain.RawMessage{Sender: sender, Text: text, Timestamp: "18:00", Phone: "N/A"}
}

func keepScenario() domain.Scenario {
	return domain.Scenario{
		Name:   "padel",
		Prompt: "p",
		Schema: domain.Schema{Fields: []domain.FieldSpec{
			{Name: "is_game_invite", Type: domain.FieldBool, Required: true},
			{Name: "confidence", Type: domain.FieldString},
			{Name: "reasoning", Type: domain.FieldString},
		}},
		Groups:          []string{"Padel TLV"},
		ConfidenceField: "confidence",
		ReasoningField:  "reasoning",
		KeepField:       "is_game_invite",
	}
}

func genericScenario() domain.Scenario {
	sc := keepScenario()
	sc.Name = "generic"
	sc.Groups = []string{"Generic"}
	sc.KeepField = ""
	return sc
}

func newTestRunner(src domain.MessageSource, scenarios []domain.Scenario, cls domain.Classifier, sinks ...domain.InsightSink) (*Runner, *metrics.Session) {
	logger := testLogger()
	counters := metrics.NewSession()
	agg := NewAggregator(&fakeProvider{cls: cls}, counters, logger)
	disp := scenario.NewDispatch(scenarios, logger)
	tracker := dedup.NewTracker(src, logger)
	return NewRunner(tracker, disp, agg, counters, sinks, logger), counters
}

func matchResult(keep bool, conf string) domain.Result {
	return domain.Result{"is_game_invite": keep, "confidence": conf, "reasoning": "because"}
}

func TestAnalyzeIsolatesPerMessageFailures(t *testing.T) {
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		if text == "bad" {
			return nil, fmt.Errorf("classifier exploded")
		}
		return matchResult(true, "HIGH"), nil
	}}
	src := &fakeSource{history: map[string][]domain.RawMessage{
		"Padel TLV": {msg("a", "ok1"), msg("b", "bad"), msg("c", "ok3")},
	}}
	r, counters := newTestRunner(src, []domain.Scenario{keepScenario()}, cls)

	insights, err := r.ScanHistory(context.Background(), []string{"Padel TLV"}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(insights) != 2 {
		t.Fatalf("want 2 insights, got %d", len(insights))
	}
	if insights[0].Text != "ok1" || insights[1].Text != "ok3" {
		t.Fatalf("order or content wrong: %v, %v", insights[0].Text, insights[1].Text)
	}
	if counters.ClassifyFailures.Load() != 1 {
		t.Errorf("failures counter: %d", counters.ClassifyFailures.Load())
	}
}

func TestAnalyzeKeepsOnlyPositives(t *testing.T) {
	verdicts := map[string]bool{"m1": true, "m2": false, "m3": true}
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		return matchResult(verdicts[text], "MEDIUM"), nil
	}}
	src := &fakeSource{history: map[string][]domain.RawMessage{
		"Padel TLV": {msg("a", "m1"), msg("b", "m2"), msg("c", "m3")},
	}}
	r, _ := newTestRunner(src, []domain.Scenario{keepScenario()}, cls)

	insights, err := r.ScanHistory(context.Background(), []string{"Padel TLV"}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(insights) != 2 {
		t.Fatalf("want 2 positives, got %d", len(insights))
	}
	if insights[0].Text != "m1" || insights[1].Text != "m3" {
		t.Fatalf("relative order lost: %s, %s", insights[0].Text, insights[1].Text)
	}
}

func TestAnalyzeWithoutKeepFieldKeepsEverything(t *testing.T) {
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		return matchResult(false, "LOW"), nil
	}}
	src := &fakeSource{history: map[string][]domain.RawMessage{
		"Generic": {msg("a", "m1"), msg("b", "m2")},
	}}
	r, _ := newTestRunner(src, []domain.Scenario{genericScenario()}, cls)

	insights, err := r.ScanHistory(context.Background(), []string{"Generic"}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(insights) != 2 {
		t.Fatalf("generic scenario keeps all classified messages, got %d", len(insights))
	}
}

func TestAnalyzeLimit(t *testing.T) {
	var calls int
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		calls++
		return matchResult(true, "HIGH"), nil
	}}
	src := &fakeSource{history: map[string][]domain.RawMessage{
		"Padel TLV": {msg("a", "m1"), msg("b", "m2"), msg("c", "m3")},
	}}
	r, _ := newTestRunner(src, []domain.Scenario{keepScenario()}, cls)

	insights, err := r.ScanHistory(context.Background(), []string{"Padel TLV"}, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || len(insights) != 2 {
		t.Fatalf("limit ignored: calls=%d insights=%d", calls, len(insights))
	}
}

func TestScanHistorySkipsUnmappedAndMissingChats(t *testing.T) {
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		return matchResult(true, "HIGH"), nil
	}}
	src := &fakeSource{
		history: map[string][]domain.RawMessage{"Padel TLV": {msg("a", "m1")}},
		failing: map[string]error{"Padel North": domain.ErrChatNotFound},
	}
	sc := keepScenario()
	sc.Groups = []string{"Padel TLV", "Padel North"}
	r, counters := newTestRunner(src, []domain.Scenario{sc}, cls)

	insights, err := r.ScanHistory(context.Background(),
		[]string{"Unmapped Group", "Padel North", "Padel TLV"}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(insights) != 1 || insights[0].Group != "Padel TLV" {
		t.Fatalf("want the one good group to survive, got %v", insights)
	}
	if counters.GroupsSkipped.Load() != 2 {
		t.Errorf("skips counter: %d", counters.GroupsSkipped.Load())
	}
}

func TestScanHistoryPropagatesSessionFailure(t *testing.T) {
	sessionErr := errors.New("browser crashed")
	src := &fakeSource{failing: map[string]error{"Padel TLV": sessionErr}}
	r, counters := newTestRunner(src, []domain.Scenario{keepScenario()},
		&fakeClassifier{fn: func(string) (domain.Result, error) { return nil, nil }})

	_, err := r.ScanHistory(context.Background(), []string{"Padel TLV"}, 3, 0)
	if !errors.Is(err, sessionErr) {
		t.Fatalf("session-level failure must propagate, got %v", err)
	}
	if counters.GroupsSkipped.Load() != 0 {
		t.Errorf("an aborting failure is not a skip, counter = %d", counters.GroupsSkipped.Load())
	}
}

func TestMonitorSeedsThenSurfacesOnlyNew(t *testing.T) {
	old := msg("a", "seeded old message")
	fresh := msg("b", "brand new invite")

	src := &fakeSource{
		history: map[string][]domain.RawMessage{"Padel TLV": {old}},
		visible: map[string][][]domain.RawMessage{
			"Padel TLV": {{old, fresh}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	classified := make([]string, 0)
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		classified = append(classified, text)
		return matchResult(true, "HIGH"), nil
	}}
	r, _ := newTestRunner(src, []domain.Scenario{keepScenario()}, cls)

	// Cancel right after the first poll cycle completes.
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	insights, err := r.Monitor(ctx, []string{"Padel TLV"}, 3, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	// The seeded message is never classified; only the new one is.
	if len(classified) != 1 || classified[0] != "brand new invite" {
		t.Fatalf("classified wrong set: %v", classified)
	}
	if len(insights) != 1 || insights[0].Text != "brand new invite" {
		t.Fatalf("partial results lost on cancellation: %v", insights)
	}
}

func TestAnalyzeCancelledMidBatchReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		if text == "second" {
			cancel() // cancellation arrives while the batch is running
		}
		return matchResult(true, "HIGH"), nil
	}}
	src := &fakeSource{history: map[string][]domain.RawMessage{
		"Padel TLV": {msg("a", "first"), msg("b", "second"), msg("c", "third")},
	}}
	r, _ := newTestRunner(src, []domain.Scenario{keepScenario()}, cls)

	insights, err := r.ScanHistory(ctx, []string{"Padel TLV"}, 3, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("want the two pre-cancellation insights, got %d", len(insights))
	}
}

// recordingSink collects emitted insights.
type recordingSink struct {
	got []domain.Insight
	err error
}

func (s *recordingSink) Emit(ctx context.Context, ins domain.Insight) error {
	s.got = append(s.got, ins)
	return s.err
}

func TestRunnerEmitsToSinks(t *testing.T) {
	cls := &fakeClassifier{fn: func(text string) (domain.Result, error) {
		return matchResult(true, "HIGH"), nil
	}}
	src := &fakeSource{history: map[string][]domain.RawMessage{
		"Padel TLV": {msg("a", "m1")},
	}}
	good := &recordingSink{}
	broken := &recordingSink{err: errors.New("sink down")}
	r, _ := newTestRunner(src, []domain.Scenario{keepScenario()}, cls, broken, good)

	insights, err := r.ScanHistory(context.Background(), []string{"Padel TLV"}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	// A failing sink never fails the scan, and later sinks still run.
	if len(insights) != 1 || len(good.got) != 1 {
		t.Fatalf("insights=%d sink=%d", len(insights), len(good.got))
	}
}
