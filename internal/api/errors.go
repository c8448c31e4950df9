package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

var kindStatus = map[game.Kind]int{
	game.KindValidation:    http.StatusBadRequest,
	game.KindAuthorization: http.StatusForbidden,
	game.KindNotFound:      http.StatusNotFound,
	game.KindConflict:      http.StatusConflict,
	game.KindResource:      http.StatusUnprocessableEntity,
	game.KindUnavailable:   http.StatusServiceUnavailable,
}

// abortWithError writes the error body with the status of its kind.
func abortWithError(c *gin.Context, err error) {
	kind := game.KindOf(err)
	code := kindStatus[kind]
	if errors.Is(err, game.ErrUnauthorized) {
		code = http.StatusUnauthorized
	}
	body := gin.H{"error": err.Error(), "kind": kind}

	var te *game.TransitionError
	if errors.As(err, &te) {
		body["currentStatus"] = te.From
		body["requestedStatus"] = te.To
	}
	var ve *game.VersionConflictError
	if errors.As(err, &ve) {
		body["currentVersion"] = ve.Current
	}
	if code == http.StatusServiceUnavailable {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		body["error"] = "service unavailable"
	}
	c.AbortWithStatusJSON(code, body)
}
