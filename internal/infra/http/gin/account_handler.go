package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"campuschat/internal/infra/api"
)

type AccountHTTP interface {
	Me(c *gin.Context)
}

// AccountHandler answers GET /auth/me for the authenticated principal.
type AccountHandler struct{}

func (h AccountHandler) Me(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, api.Account{ID: p.ID})
}

var _ AccountHTTP = AccountHandler{}
