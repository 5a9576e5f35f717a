package detect

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/naveensanjula975/VocalGuard/pkg/attention"
	"github.com/naveensanjula975/VocalGuard/pkg/audio"
	"github.com/naveensanjula975/VocalGuard/pkg/classifier"
	"github.com/naveensanjula975/VocalGuard/pkg/history"
)

type fakePrimary struct {
	result classifier.Result
}

func (f *fakePrimary) Detect(ctx context.Context, clip *audio.Clip) classifier.Result {
	return f.result
}

func (f *fakePrimary) Close() error { return nil }

type fakeAttention struct {
	result   classifier.Result
	weights  [][]float64
	analysis *attention.Analysis
	err      error
	calls    int
}

func (f *fakeAttention) Detect(ctx context.Context, clip *audio.Clip) (classifier.Result, [][]float64) {
	f.calls++
	return f.result, f.weights
}

func (f *fakeAttention) Analyze(ctx context.Context, clip *audio.Clip) (*attention.Analysis, error) {
	return f.analysis, f.err
}

type fakeStandard struct {
	result classifier.Result
}

func (f *fakeStandard) Detect(ctx context.Context, path string) classifier.Result {
	return f.result
}

func verdict(isFake bool, confidence float64, modelID string) classifier.Result {
	label := "real"
	if isFake {
		label = "fake"
	}
	return classifier.Result{
		Label:         label,
		Confidence:    confidence,
		IsFake:        &isFake,
		ModelID:       modelID,
		Probabilities: map[string]float64{"fake": confidence, "real": 1 - confidence},
	}
}

func writeTestWAV(t *testing.T) string {
	t.Helper()

	const sampleRate = 16000
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	n := sampleRate / 4
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, n),
	}
	for i := range buf.Data {
		buf.Data[i] = int(10000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{
		WithPrimary(&fakePrimary{result: verdict(true, 0.9, "primary")}),
		WithStandard(&fakeStandard{result: verdict(false, 0.8, "standard")}),
		WithAttention(&fakeAttention{result: verdict(true, 0.7, "attention")}),
	}
	svc := NewService(Config{CacheDir: t.TempDir()}, append(base, opts...)...)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestDetect(t *testing.T) {
	svc := newTestService(t)
	path := writeTestWAV(t)

	report := svc.Detect(context.Background(), path, Options{})
	if report.Error != "" {
		t.Fatalf("unexpected error: %s", report.Error)
	}
	if report.Label != "fake" || report.Confidence != 0.9 {
		t.Errorf("got %q %.2f", report.Label, report.Confidence)
	}
	if report.ModelUsed != "primary" {
		t.Errorf("model = %q", report.ModelUsed)
	}
	if report.Filename != "clip.wav" {
		t.Errorf("filename = %q", report.Filename)
	}
	if report.Probability != 0.9 {
		t.Errorf("probability = %f, want fake-class probability", report.Probability)
	}
	if report.ProcessingTimeMS < 0 {
		t.Errorf("processing time = %f", report.ProcessingTimeMS)
	}
}

func TestDetectMissingFile(t *testing.T) {
	svc := newTestService(t)

	report := svc.Detect(context.Background(), "/no/such/file.wav", Options{})
	if report.Label != classifier.ErrorLabel {
		t.Fatalf("label = %q, want error", report.Label)
	}
	if report.Confidence != 0 || report.IsFake != nil {
		t.Errorf("error report = %+v", report)
	}
	if report.Error == "" {
		t.Error("error message should be set")
	}
}

func TestDetectUndecodableFile(t *testing.T) {
	svc := newTestService(t)
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	report := svc.Detect(context.Background(), path, Options{})
	if report.Label != classifier.ErrorLabel {
		t.Errorf("label = %q, want error", report.Label)
	}
}

func TestDetectStandard(t *testing.T) {
	svc := newTestService(t)
	path := writeTestWAV(t)

	report := svc.DetectStandard(context.Background(), path, Options{})
	if report.ModelUsed != "standard" {
		t.Errorf("model = %q", report.ModelUsed)
	}
	if report.Label != "real" || report.Confidence != 0.8 {
		t.Errorf("got %q %.2f", report.Label, report.Confidence)
	}
}

func TestDetectEnsemble(t *testing.T) {
	analysis := &attention.Analysis{NumLayers: 6, NumHeads: 8, SeqLen: 4}
	attnWeights := [][]float64{{0.5, 0.5}, {0.5, 0.5}}
	svc := newTestService(t,
		WithAttention(&fakeAttention{
			result:   verdict(true, 0.7, "attention"),
			weights:  attnWeights,
			analysis: analysis,
		}))
	path := writeTestWAV(t)

	report := svc.DetectEnsemble(context.Background(), path, Options{})
	if report.Error != "" {
		t.Fatalf("unexpected error: %s", report.Error)
	}
	if report.ModelUsed != "wav2vec2_transformer_ensemble" {
		t.Errorf("model = %q", report.ModelUsed)
	}
	// Both models voted fake; the verdict is fake with blended confidence.
	if report.IsFake == nil || !*report.IsFake {
		t.Error("verdict should be fake")
	}
	want := 0.9*0.6 + 0.7*0.4
	if math.Abs(report.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %f, want %f", report.Confidence, want)
	}
	if report.ModelConfidences["wav2vec2"] != 0.9 || report.ModelConfidences["transformer"] != 0.7 {
		t.Errorf("model confidences = %v", report.ModelConfidences)
	}
	if report.Analysis != analysis {
		t.Error("attention analysis should be attached")
	}
	if len(report.AttentionWeights) != 2 {
		t.Errorf("attention weights = %v", report.AttentionWeights)
	}
}

func TestDetectEnsembleAttentionFailure(t *testing.T) {
	svc := newTestService(t,
		WithAttention(&fakeAttention{
			result: classifier.ErrorResult("attention", os.ErrInvalid),
			err:    os.ErrInvalid,
		}))
	path := writeTestWAV(t)

	report := svc.DetectEnsemble(context.Background(), path, Options{})
	// The ensemble falls back to the primary verdict.
	if report.ModelUsed != "primary" {
		t.Errorf("model = %q, want primary fallback", report.ModelUsed)
	}
	if report.Label != "fake" || report.Confidence != 0.9 {
		t.Errorf("got %q %.2f", report.Label, report.Confidence)
	}
	if report.Analysis != nil {
		t.Error("no analysis should be attached when it fails")
	}
}

func TestDetectEnsembleTransformerOptOut(t *testing.T) {
	attn := &fakeAttention{result: verdict(true, 0.7, "attention")}
	svc := newTestService(t, WithAttention(attn))
	path := writeTestWAV(t)

	off := false
	report := svc.DetectEnsemble(context.Background(), path, Options{UseTransformer: &off})
	if report.Error != "" {
		t.Fatalf("unexpected error: %s", report.Error)
	}
	if report.ModelUsed != "primary" {
		t.Errorf("model = %q, want primary only", report.ModelUsed)
	}
	if report.Label != "fake" || report.Confidence != 0.9 {
		t.Errorf("got %q %.2f", report.Label, report.Confidence)
	}
	if attn.calls != 0 {
		t.Errorf("attention model ran %d times despite opt-out", attn.calls)
	}
	if report.Analysis != nil || report.AttentionWeights != nil {
		t.Error("no attention output should be attached")
	}
}

func TestCacheAccessWithoutModelArtifacts(t *testing.T) {
	// Cache and history commands must not require model files on disk.
	svc := NewService(Config{
		CacheDir: t.TempDir(),
		ModelDir: filepath.Join(t.TempDir(), "no-models"),
	})
	t.Cleanup(func() { svc.Close() })

	cache, err := svc.Cache()
	if err != nil {
		t.Fatalf("Cache() = %v", err)
	}
	if cache == nil {
		t.Fatal("cache should be initialized")
	}
	hist, err := svc.History()
	if err != nil {
		t.Fatalf("History() = %v", err)
	}
	if hist != nil {
		t.Error("history should be nil when no HistoryDir is set")
	}
}

func TestDetectPersistsHistory(t *testing.T) {
	store, err := history.Open(history.Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	svc := newTestService(t, WithHistory(store))
	path := writeTestWAV(t)

	report := svc.Detect(context.Background(), path, Options{UserID: "u1", Store: true})
	if report.MetadataID == "" || report.AnalysisID == "" || report.DetailsID == "" {
		t.Fatalf("record IDs not set: %+v", report)
	}

	records, err := store.Analyses(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if !records[0].IsDeepfake || records[0].Confidence != 0.9 {
		t.Errorf("stored record = %+v", records[0])
	}

	details, err := store.GetDetails(context.Background(), report.DetailsID)
	if err != nil {
		t.Fatal(err)
	}
	if details.ModelVersion != "primary" {
		t.Errorf("details = %+v", details)
	}
}

func TestDetectNoPersistWithoutOptIn(t *testing.T) {
	store, err := history.Open(history.Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	svc := newTestService(t, WithHistory(store))
	path := writeTestWAV(t)

	report := svc.Detect(context.Background(), path, Options{UserID: "u1"})
	if report.MetadataID != "" {
		t.Error("no record should be stored without Store")
	}
	records, err := store.Analyses(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestDetectErrorNotPersisted(t *testing.T) {
	store, err := history.Open(history.Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	svc := newTestService(t, WithHistory(store))

	report := svc.Detect(context.Background(), "/no/such/file.wav", Options{UserID: "u1", Store: true})
	if report.AnalysisID != "" {
		t.Error("error reports must not be persisted")
	}
}

func TestOptionsFilenameOverride(t *testing.T) {
	svc := newTestService(t)
	path := writeTestWAV(t)

	report := svc.Detect(context.Background(), path, Options{Filename: "original-upload.wav"})
	if report.Filename != "original-upload.wav" {
		t.Errorf("filename = %q", report.Filename)
	}
}
