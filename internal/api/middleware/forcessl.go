package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ForceSSL redirects plain HTTP requests that came through a TLS-terminating
// proxy to https. Local hosts are left alone.
func ForceSSL() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Forwarded-Proto") != "http" || isLocalHost(c.Request.Host) {
			c.Next()
			return
		}

		target := "https://" + c.Request.Host + c.Request.URL.RequestURI()
		c.Redirect(http.StatusMovedPermanently, target)
		c.Abort()
	}
}

func isLocalHost(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
