package httpserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// authHMAC guards the collect endpoint against tampering and replay.
// Signature: base64(HMAC_SHA256(secret, ts + "\n" + nonce + "\n" + sha256hex(body))).
func (s *Server) authHMAC() gin.HandlerFunc {
	return func(c *gin.Context) {
		tsStr := strings.TrimSpace(c.GetHeader("X-Timestamp"))
		nonce := strings.TrimSpace(c.GetHeader("X-Nonce"))
		sig := strings.TrimSpace(c.GetHeader("X-Signature"))
		if tsStr == "" || nonce == "" || sig == "" {
			s.respondError(c, 401, "unauthorized", "missing auth headers")
			c.Abort()
			return
		}
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			s.respondError(c, 401, "unauthorized", "bad timestamp")
			c.Abort()
			return
		}
		if delta := time.Duration(abs64(time.Now().Unix()-ts)) * time.Second; delta > s.cfg.AllowSkew {
			s.respondError(c, 401, "unauthorized", "timestamp skew too large")
			c.Abort()
			return
		}
		body, err := c.GetRawData()
		if err != nil {
			s.respondError(c, 400, "bad_request", "read body failed")
			c.Abort()
			return
		}
		sum := sha256.Sum256(body)
		msg := tsStr + "\n" + nonce + "\n" + hex.EncodeToString(sum[:])
		mac := hmac.New(sha256.New, []byte(s.cfg.IngestSecret))
		_, _ = mac.Write([]byte(msg))
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(sig)) {
			s.respondError(c, 401, "unauthorized", "bad signature")
			c.Abort()
			return
		}
		// Put the body back for the handler.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
