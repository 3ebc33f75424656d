package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// IsBotKey is the gin context key set by BotFilter.
const IsBotKey = "is_bot"

// botPatterns are known bot User-Agent substrings (lowercase).
var botPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "rogerbot", "linkedinbot", "embedly",
	"quora link preview", "showyoubot", "outbrain",
	"pinterest", "applebot", "semrushbot", "ahrefsbot",
	"mj12bot", "dotbot", "petalbot", "bytespider",
	"gptbot", "claudebot", "ccbot", "headlesschrome",
	"crawler", "spider", "python-requests", "go-http-client",
}

// BotFilter flags requests from known bots. Vote handlers answer flagged
// requests without writing. An empty user agent is not flagged; it votes
// under the "unknown" agent.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsBot(c.Request.UserAgent()) {
			c.Set(IsBotKey, true)
		}
		c.Next()
	}
}

// IsBot reports whether ua looks automated.
func IsBot(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}

// FlaggedBot reports whether BotFilter flagged c.
func FlaggedBot(c *gin.Context) bool {
	return c.GetBool(IsBotKey)
}
