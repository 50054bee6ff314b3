package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountConsole serves the built staff console from dir, falling back to its
// index.html for client-side routes. Unknown /api paths always get JSON.
func (s *Server) mountConsole(dir string) {
	var index string
	if dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			s.logger.Warn("console directory missing", slog.String("path", dir))
		} else if p := filepath.Join(dir, "index.html"); fileExists(p) {
			index = p
			s.engine.StaticFile("/", index)
			if assets := filepath.Join(dir, "assets"); fileExists(assets) {
				s.engine.StaticFS("/assets", gin.Dir(assets, false))
			}
		} else {
			s.logger.Warn("console index.html not found", slog.String("path", p))
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		if index == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.File(index)
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
