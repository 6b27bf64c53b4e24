package middleware

import (
	"crypto/subtle"
	"fmt"

	"github.com/chainwatch/ingestor/api"
	config "github.com/chainwatch/ingestor/configs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = fmt.Errorf("invalid username or password")

// Authorization enforces basic auth when a username is configured.
func Authorization(cfg config.BasicAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Username == "" {
			c.Next()
			return
		}
		username, password, ok := c.Request.BasicAuth()
		if !ok || !validateCredentials(cfg, username, password) {
			log.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg(ErrUnauthorized.Error())
			api.UnauthorizedErrorHandler(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func validateCredentials(cfg config.BasicAuthConfig, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
	return userOK && passOK
}
