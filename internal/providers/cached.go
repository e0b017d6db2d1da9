package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/ncecere/readaloud/internal/config"
)

// TranslationStore persists finished translations by key.
type TranslationStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type cachedTranslator struct {
	next   Translator
	store  TranslationStore
	scope  string
	logger *slog.Logger
}

// WithTranslationCache consults store before calling the translator. Cache
// failures are logged and never fail a translation.
func WithTranslationCache(next Translator, store TranslationStore, cfg config.TranslationConfig, logger *slog.Logger) Translator {
	if store == nil || next == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	scope := strings.Join([]string{cfg.Provider, cfg.Model, cfg.SourceLanguage, cfg.TargetLanguage}, "|")
	return &cachedTranslator{next: next, store: store, scope: scope, logger: logger}
}

func (c *cachedTranslator) Translate(ctx context.Context, text string) (string, error) {
	key := c.key(text)
	if cached, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("translation cache lookup failed", "error", err)
	} else if ok {
		return cached, nil
	}

	out, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, out); err != nil {
		c.logger.Warn("translation cache store failed", "error", err)
	}
	return out, nil
}

func (c *cachedTranslator) key(text string) string {
	sum := sha256.Sum256([]byte(c.scope + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
