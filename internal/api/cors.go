package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
)

var defaultOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// corsConfig allows read-only access from the configured origins. The
// tracker is public, so no credentials are involved.
func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:  defaultOrigins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	origins, allowAll := normalizeAllowedOrigins(allowedOrigins)
	switch {
	case allowAll:
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
	case len(origins) > 0:
		cfg.AllowOrigins = origins
	}
	return cfg
}

// normalizeAllowedOrigins flattens comma separated entries and reports
// whether "*" was among them.
func normalizeAllowedOrigins(origins []string) (parsed []string, allowAll bool) {
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			switch trimmed := strings.TrimSpace(part); trimmed {
			case "":
			case "*":
				allowAll = true
			default:
				parsed = append(parsed, trimmed)
			}
		}
	}
	return parsed, allowAll
}
