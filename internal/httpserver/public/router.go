package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/readaloud/internal/app"
)

// Register wires up the read-aloud API routes.
func Register(router fiber.Router, container *app.Container) {
	prefix := "/audio"
	if container.Config != nil && container.Config.Audio.URLPrefix != "" {
		prefix = container.Config.Audio.URLPrefix
	}
	mount(router, &readAloudHandler{
		pipeline: container.Pipeline,
		audio:    container.Narrator,
	}, prefix)
}

func mount(router fiber.Router, handler *readAloudHandler, audioPrefix string) {
	router.Post("/translate", handler.translate)
	router.Post("/translate-nl", handler.translate)
	router.Post("/analyze", handler.analyze)
	router.Post("/tts", handler.speak)
	router.Get(audioPrefix+"/:name", handler.serveAudio)
}
