package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/speech"
	"github.com/ncecere/readaloud/internal/uploads"
)

type fakeExtractor struct {
	out       models.Extraction
	panicMsg  string
	seenPaths []string
	existed   []bool
}

func (f *fakeExtractor) Extract(_ context.Context, path string) models.Extraction {
	f.seenPaths = append(f.seenPaths, path)
	_, err := os.Stat(path)
	f.existed = append(f.existed, err == nil)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.out
}

type fakeTranslator struct {
	out    string
	err    error
	inputs []string
}

func (f *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	f.inputs = append(f.inputs, text)
	return f.out, f.err
}

type fakeNarrator struct {
	fail  map[speech.Kind]error
	texts map[speech.Kind][]string
}

func newFakeNarrator() *fakeNarrator {
	return &fakeNarrator{fail: map[speech.Kind]error{}, texts: map[speech.Kind][]string{}}
}

func (f *fakeNarrator) Narrate(_ context.Context, kind speech.Kind, text string) (speech.Artifact, error) {
	f.texts[kind] = append(f.texts[kind], text)
	if err := f.fail[kind]; err != nil {
		return speech.Artifact{}, err
	}
	key := string(kind) + "_0123456789abcdef0123456789abcdef.mp3"
	return speech.Artifact{Key: key, URL: "http://localhost:8000/audio/" + key}, nil
}

type stageLog struct{ entries []string }

func (s *stageLog) RecordStage(stage, outcome string) {
	s.entries = append(s.entries, stage+":"+outcome)
}

type harness struct {
	pipeline   *Pipeline
	extractor  *fakeExtractor
	translator *fakeTranslator
	narrator   *fakeNarrator
	stages     *stageLog
	uploadDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		extractor:  &fakeExtractor{},
		translator: &fakeTranslator{},
		narrator:   newFakeNarrator(),
		stages:     &stageLog{},
		uploadDir:  t.TempDir(),
	}
	stager, err := uploads.NewStager(h.uploadDir, 0, nil)
	require.NoError(t, err)
	h.pipeline, err = New(Options{
		Extractor:  h.extractor,
		Translator: h.translator,
		Narrator:   h.narrator,
		Stager:     stager,
		Recorder:   h.stages,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) requireUploadsGone(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func image(name string) *models.ImageInput {
	return &models.ImageInput{Data: []byte("fake image bytes"), Filename: name}
}

func ptr(s string) *string { return &s }

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestOCRTextOverwritesTypedText(t *testing.T) {
	h := newHarness(t)
	h.extractor.out = models.Extraction{Text: "Hello"}

	res := h.pipeline.Analyze(context.Background(), Request{Text: "ignored", Image: image("scan.png")})
	require.Equal(t, "Hello", res.ReceivedText)
	require.Equal(t, ptr("Hello"), res.VisionFullText)
	require.Equal(t, ptr("scan.png"), res.ImageFilename)
	require.Equal(t, []string{"Hello"}, h.narrator.texts[speech.KindSpeech])
}

func TestExtractionFailureFallsBackToTypedText(t *testing.T) {
	tests := []struct {
		name      string
		extractor fakeExtractor
	}{
		{name: "empty extraction", extractor: fakeExtractor{out: models.Extraction{}}},
		{name: "non printable ocr", extractor: fakeExtractor{out: models.Extraction{Text: "\x00\x01 \t"}}},
		{name: "extractor panics", extractor: fakeExtractor{panicMsg: "vision sdk crashed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			*h.extractor = tt.extractor

			res := h.pipeline.Analyze(context.Background(), Request{Text: "  typed\x07 text ", Image: image("a.jpg")})
			require.Equal(t, "typed text", res.ReceivedText)
			require.Nil(t, res.VisionFullText)
			require.Nil(t, res.CaptionText)
			require.NotEmpty(t, res.AudioURL)
			h.requireUploadsGone(t)
		})
	}
}

func TestEmptyInputUsesSentinel(t *testing.T) {
	h := newHarness(t)
	res := h.pipeline.Analyze(context.Background(), Request{Text: " \n\t "})
	require.Equal(t, NoTextFallback, res.ReceivedText)
	require.Nil(t, res.ImageFilename)
	require.Equal(t, []string{NoTextFallback}, h.narrator.texts[speech.KindSpeech])
	require.Contains(t, h.stages.entries, "finalize:fallback")
}

func TestSpeechSourcePrecedence(t *testing.T) {
	tests := []struct {
		name           string
		want           bool
		translation    string
		translationErr error
		wantTranslated *string
		wantSpoken     string
		wantCalls      int
	}{
		{name: "requested and succeeded", want: true, translation: "Hallo", wantTranslated: ptr("Hallo"), wantSpoken: "Hallo", wantCalls: 1},
		{name: "requested and failed", want: true, translationErr: errors.New("model down"), wantSpoken: "Hello", wantCalls: 1},
		{name: "requested but blank", want: true, translation: " \x00 ", wantSpoken: "Hello", wantCalls: 1},
		{name: "not requested", want: false, translation: "Hallo", wantSpoken: "Hello", wantCalls: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.translator.out = tt.translation
			h.translator.err = tt.translationErr

			res := h.pipeline.Analyze(context.Background(), Request{Text: "Hello", WantTranslation: tt.want})
			require.Equal(t, "Hello", res.ReceivedText)
			require.Equal(t, tt.wantTranslated, res.TranslatedText)
			require.Equal(t, []string{tt.wantSpoken}, h.narrator.texts[speech.KindSpeech])
			require.Len(t, h.translator.inputs, tt.wantCalls)
			require.NotEmpty(t, res.AudioURL)
		})
	}
}

func TestSynthesisFailuresAreIsolated(t *testing.T) {
	t.Run("caption fails", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.out = models.Extraction{Text: "Menu", Caption: ptr("a menu board")}
		h.narrator.fail[speech.KindCaption] = errors.New("tts down")

		res := h.pipeline.Analyze(context.Background(), Request{Image: image("menu.png")})
		require.NotEmpty(t, res.AudioURL)
		require.Equal(t, ptr("a menu board"), res.CaptionText)
		require.Nil(t, res.CaptionAudioURL)
	})
	t.Run("main fails", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.out = models.Extraction{Text: "Menu", Caption: ptr("a menu board")}
		h.narrator.fail[speech.KindSpeech] = errors.New("tts down")

		res := h.pipeline.Analyze(context.Background(), Request{Image: image("menu.png")})
		require.Equal(t, "", res.AudioURL)
		require.NotNil(t, res.CaptionAudioURL)
		require.Contains(t, *res.CaptionAudioURL, "caption_")
		require.Equal(t, []string{"a menu board"}, h.narrator.texts[speech.KindCaption])
	})
}

func TestUnprintableCaptionIsDropped(t *testing.T) {
	h := newHarness(t)
	h.extractor.out = models.Extraction{Text: "Sign", Caption: ptr("\u200b\x00")}

	res := h.pipeline.Analyze(context.Background(), Request{Image: image("sign.png")})
	require.Nil(t, res.CaptionText)
	require.Nil(t, res.CaptionAudioURL)
	require.Empty(t, h.narrator.texts[speech.KindCaption])
}

func TestStagedUploadRemovedOnEveryPath(t *testing.T) {
	tests := []struct {
		name      string
		extractor fakeExtractor
	}{
		{name: "success", extractor: fakeExtractor{out: models.Extraction{Text: "ok"}}},
		{name: "empty", extractor: fakeExtractor{}},
		{name: "panic", extractor: fakeExtractor{panicMsg: "boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			*h.extractor = tt.extractor
			h.pipeline.Analyze(context.Background(), Request{Image: image("photo.jpeg")})

			require.Len(t, h.extractor.seenPaths, 1)
			require.Equal(t, []bool{true}, h.extractor.existed)
			_, err := os.Stat(h.extractor.seenPaths[0])
			require.ErrorIs(t, err, os.ErrNotExist)
			h.requireUploadsGone(t)
		})
	}
}

func TestStagingFailureIsIngestionFailure(t *testing.T) {
	h := newHarness(t)
	stager, err := uploads.NewStager(h.uploadDir, 1, nil)
	require.NoError(t, err)
	h.pipeline.stager = stager

	res := h.pipeline.Analyze(context.Background(), Request{Text: "typed", Image: image("big.png")})
	require.Equal(t, "typed", res.ReceivedText)
	require.Empty(t, h.extractor.seenPaths)
	require.Contains(t, h.stages.entries, "ingest:failed")
}

func TestStagesRunInOrder(t *testing.T) {
	h := newHarness(t)
	h.extractor.out = models.Extraction{Text: "Hi", Caption: ptr("a wave")}
	h.translator.out = "Hoi"

	h.pipeline.Analyze(context.Background(), Request{Image: image("x.png"), WantTranslation: true})
	require.Equal(t, []string{
		"ingest:ok",
		"finalize:ok",
		"translate:ok",
		"select:translated",
		"synthesize:ok",
		"caption_synthesize:ok",
	}, h.stages.entries)
}

func TestScenarioPlainText(t *testing.T) {
	h := newHarness(t)
	res := h.pipeline.Analyze(context.Background(), Request{Text: "Bonjour", WantTranslation: false})
	require.Equal(t, "Bonjour", res.ReceivedText)
	require.Nil(t, res.TranslatedText)
	require.NotEmpty(t, res.AudioURL)
	require.Nil(t, res.CaptionText)
	require.Nil(t, res.CaptionAudioURL)
	require.Nil(t, res.VisionFullText)
}

func TestScenarioTranslatedInvoice(t *testing.T) {
	h := newHarness(t)
	h.extractor.out = models.Extraction{Text: "INVOICE #42"}
	h.translator.out = "FACTURE #42"

	res := h.pipeline.Analyze(context.Background(), Request{Image: image("invoice.png"), WantTranslation: true})
	require.Equal(t, "INVOICE #42", res.ReceivedText)
	require.Equal(t, ptr("FACTURE #42"), res.TranslatedText)
	require.NotEmpty(t, res.AudioURL)
	require.Equal(t, []string{"INVOICE #42"}, h.translator.inputs)
	require.Equal(t, []string{"FACTURE #42"}, h.narrator.texts[speech.KindSpeech])
}

func TestTranslatePropagatesFailure(t *testing.T) {
	h := newHarness(t)
	h.translator.err = errors.New("model down")
	_, err := h.pipeline.Translate(context.Background(), "Hello")
	require.ErrorContains(t, err, "model down")

	h.translator.err = nil
	h.translator.out = " Hallo "
	out, err := h.pipeline.Translate(context.Background(), "\x00")
	require.NoError(t, err)
	require.Equal(t, "Hallo", out)
	require.Equal(t, NoTextFallback, h.translator.inputs[1])
}

func TestSpeak(t *testing.T) {
	h := newHarness(t)
	url := h.pipeline.Speak(context.Background(), "  ")
	require.Contains(t, url, "tts_")
	require.Equal(t, []string{NoSpeechFallback}, h.narrator.texts[speech.KindSpeech])

	h.narrator.fail[speech.KindSpeech] = errors.New("tts down")
	require.Equal(t, "", h.pipeline.Speak(context.Background(), "Hello"))
}
