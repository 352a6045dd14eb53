// Package web serves the embedded single-page front-end.
package web

import (
	"embed"
	"net/http"

	"llmarena/internal/core"

	"github.com/gin-gonic/gin"
)

//go:embed static/index.html static/styles.css static/app.js
var assets embed.FS

type asset struct {
	name        string
	contentType string
}

var (
	indexAsset  = asset{name: "static/index.html", contentType: core.ContentTypeHTML}
	stylesAsset = asset{name: "static/styles.css", contentType: core.ContentTypeCSS}
	scriptAsset = asset{name: "static/app.js", contentType: core.ContentTypeJS}
)

// ShowIndex serves the application page.
func ShowIndex(c *gin.Context) { serve(c, indexAsset) }

// ShowStyles serves the stylesheet.
func ShowStyles(c *gin.Context) { serve(c, stylesAsset) }

// ShowScript serves the front-end script.
func ShowScript(c *gin.Context) { serve(c, scriptAsset) }

func serve(c *gin.Context, a asset) {
	data, err := assets.ReadFile(a.name)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load %s", a.name)
		return
	}
	c.Data(http.StatusOK, a.contentType, data)
}
