package httpserver

import (
	"embed"
	"io/fs"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
	fiberfs "github.com/gofiber/fiber/v2/middleware/filesystem"
)

// page holds the single browser page that drives the API.
//
//go:embed static
var page embed.FS

const pageRoot = "static"

func embeddedPage() (fs.FS, error) {
	return fs.Sub(page, pageRoot)
}

func mountEmbeddedPage(app *fiber.App) {
	root, err := embeddedPage()
	if err != nil {
		log.Printf("page assets not embedded: %v", err)
		return
	}

	app.Use("/", fiberfs.New(fiberfs.Config{
		Root:   http.FS(root),
		Index:  "index.html",
		Browse: false,
	}))
}
