package public

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/readaloud/internal/httpserver/httputil"
	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/pipeline"
	"github.com/ncecere/readaloud/internal/storage/blob"
)

type readAloud interface {
	Analyze(ctx context.Context, req pipeline.Request) pipeline.Result
	Translate(ctx context.Context, text string) (string, error)
	Speak(ctx context.Context, text string) string
}

type audioSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, blob.ObjectInfo, error)
}

type readAloudHandler struct {
	pipeline readAloud
	audio    audioSource
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *readAloudHandler) translate(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	translated, err := h.pipeline.Translate(c.UserContext(), req.Text)
	if err != nil {
		slog.WarnContext(c.UserContext(), "translation request failed", slog.String("error", err.Error()))
		return httputil.WriteError(c, fiber.StatusInternalServerError, "translation failed")
	}
	return c.JSON(fiber.Map{"translated_text": translated})
}

func (h *readAloudHandler) speak(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	return c.JSON(fiber.Map{"audio_url": h.pipeline.Speak(c.UserContext(), req.Text)})
}

func (h *readAloudHandler) analyze(c *fiber.Ctx) error {
	req := pipeline.Request{
		Text:            c.FormValue("text"),
		WantTranslation: parseFlag(c.FormValue("want_translation", c.FormValue("want_dutch"))),
	}
	if fh, err := c.FormFile("image"); err == nil && hasUpload(fh) {
		req.Image = readUpload(c.UserContext(), fh)
	}
	return c.JSON(h.pipeline.Analyze(c.UserContext(), req))
}

func (h *readAloudHandler) serveAudio(c *fiber.Ctx) error {
	reader, info, err := h.audio.Open(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, "audio not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to read audio")
	}
	defer reader.Close()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, contentType)
	if info.Size > 0 {
		c.Set(fiber.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	_, err = io.Copy(c, reader)
	return err
}

// parseFlag treats only a case-insensitive "true" as set.
func parseFlag(v string) bool {
	return strings.EqualFold(v, "true")
}

// hasUpload filters out the empty part browsers send for an untouched file input.
func hasUpload(fh *multipart.FileHeader) bool {
	return fh != nil && (fh.Filename != "" || fh.Size > 0)
}

// readUpload never fails: unreadable bytes become an empty image, which the
// pipeline reports as an ingestion failure while still echoing the filename.
func readUpload(ctx context.Context, fh *multipart.FileHeader) *models.ImageInput {
	img := &models.ImageInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
	}
	src, err := fh.Open()
	if err != nil {
		slog.WarnContext(ctx, "open uploaded image", slog.String("error", err.Error()))
		return img
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		slog.WarnContext(ctx, "read uploaded image", slog.String("error", err.Error()))
		return img
	}
	img.Data = data
	return img
}
