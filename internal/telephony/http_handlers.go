package telephony

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	twclient "github.com/twilio/twilio-go/client"

	"screening-agent/pkg/logger"
)

const signatureHeader = "X-Twilio-Signature"

// SignatureMiddleware rejects webhook requests whose X-Twilio-Signature does
// not match. publicBaseURL is the externally visible origin Twilio signed
// against; proxies rewrite the Host seen here.
func SignatureMiddleware(authToken, publicBaseURL string) gin.HandlerFunc {
	validator := twclient.NewRequestValidator(authToken)
	base := strings.TrimRight(publicBaseURL, "/")
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		url := base + c.Request.URL.RequestURI()
		sig := c.GetHeader(signatureHeader)
		if sig == "" || !validator.Validate(url, formParams(c.Request), sig) {
			logger.FromGin(c).Warn("twilio signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// WriteTwiML writes an XML document with the content type Twilio expects.
func WriteTwiML(c *gin.Context, doc string) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, doc)
}
