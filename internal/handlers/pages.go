package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// entryPages maps the host, guest and viewer entry points to their pages
var entryPages = map[string]string{
	"/":       "index.html",
	"/host":   "host.html",
	"/guest":  "guest.html",
	"/viewer": "viewer.html",
}

// RegisterPages serves the browser entry points and the rest of dir as
// static assets
func RegisterPages(router *gin.Engine, dir string) {
	for path, page := range entryPages {
		router.StaticFile(path, filepath.Join(dir, page))
	}

	fileServer := http.FileServer(http.Dir(dir))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	})
}
