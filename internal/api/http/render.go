package http

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

const jsonContentType = "application/json; charset=utf-8"

// renderJSON encodes v with sonic. Artifacts can be megabytes of base64.
func renderJSON(c *gin.Context, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.Error(err)
		c.Data(http.StatusInternalServerError, jsonContentType, []byte(`{"errors":"Error encoding response."}`))
		return
	}
	c.Data(status, jsonContentType, data)
}

// errorResponse is the failure shape of /run and friends
type errorResponse struct {
	Errors string `json:"errors"`
}

func renderError(c *gin.Context, status int, msg string) {
	renderJSON(c, status, errorResponse{Errors: msg})
}
