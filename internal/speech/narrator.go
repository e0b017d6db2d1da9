// Package speech synthesizes text into stored audio artifacts with public URLs.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/providers"
	"github.com/ncecere/readaloud/internal/storage/blob"
)

type Kind string

const (
	KindSpeech  Kind = "tts"
	KindCaption Kind = "caption"
)

var artifactName = regexp.MustCompile(`^(tts|caption)_[0-9a-f]{32}\.(mp3|aac|flac|opus|wav|pcm)$`)

// Artifact addresses one stored synthesis result.
type Artifact struct {
	Key  string
	URL  string
	Size int64
}

// ArtifactRecorder is notified about stored audio volume.
type ArtifactRecorder interface {
	RecordArtifact(kind string, size int64)
}

type Options struct {
	Synthesizer   providers.SpeechSynthesizer
	Store         blob.Store
	Speech        config.SpeechConfig
	PublicBaseURL string
	URLPrefix     string
	Recorder      ArtifactRecorder
}

type Narrator struct {
	synth    providers.SpeechSynthesizer
	store    blob.Store
	cfg      config.SpeechConfig
	baseURL  string
	recorder ArtifactRecorder
}

func NewNarrator(opts Options) (*Narrator, error) {
	if opts.Synthesizer == nil {
		return nil, errors.New("speech: synthesizer required")
	}
	if opts.Store == nil {
		return nil, errors.New("speech: artifact store required")
	}
	prefix := "/" + strings.Trim(opts.URLPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return &Narrator{
		synth:    opts.Synthesizer,
		store:    opts.Store,
		cfg:      opts.Speech,
		baseURL:  strings.TrimRight(opts.PublicBaseURL, "/") + prefix,
		recorder: opts.Recorder,
	}, nil
}

// Narrate synthesizes text and stores it under a fresh <kind>_<hex>.<format> key.
func (n *Narrator) Narrate(ctx context.Context, kind Kind, text string) (Artifact, error) {
	audio, err := n.synth.Synthesize(ctx, models.SpeechRequest{
		Model:        n.cfg.Model,
		Input:        text,
		Voice:        n.cfg.Voice,
		Format:       n.cfg.Format,
		Instructions: n.cfg.Instructions,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("synthesize %s: %w", kind, err)
	}
	if len(audio.Audio) == 0 {
		return Artifact{}, fmt.Errorf("synthesize %s: empty audio", kind)
	}
	format := strings.ToLower(audio.Format)
	if format == "" {
		format = n.cfg.Format
	}
	if format == "" {
		format = "mp3"
	}

	key := fmt.Sprintf("%s_%s.%s", kind, strings.ReplaceAll(uuid.NewString(), "-", ""), format)
	info, err := n.store.Put(ctx, key, bytes.NewReader(audio.Audio), blob.PutOptions{
		ContentType: models.AudioContentType(format),
		Metadata:    map[string]string{"kind": string(kind)},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s artifact: %w", kind, err)
	}
	if n.recorder != nil {
		n.recorder.RecordArtifact(string(kind), int64(len(audio.Audio)))
	}
	return Artifact{Key: key, URL: n.baseURL + "/" + key, Size: info.Size}, nil
}

// Open streams a previously stored artifact. Names that could not have been
// produced by Narrate report blob.ErrNotFound.
func (n *Narrator) Open(ctx context.Context, name string) (io.ReadCloser, blob.ObjectInfo, error) {
	if !artifactName.MatchString(name) {
		return nil, blob.ObjectInfo{}, blob.ErrNotFound
	}
	return n.store.Get(ctx, name)
}
