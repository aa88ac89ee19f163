package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Run serves the router on addr until the listener fails.
func Run(router *gin.Engine, addr string) {
	if addr == "" {
		addr = ":8080"
	}
	if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
		panic(err)
	}
}
