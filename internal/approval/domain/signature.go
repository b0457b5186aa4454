package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderTimestamp = "X-Redress-Timestamp"
	HeaderSignature = "X-Redress-Signature"

	signatureVersion = "v0"
	MaxSkew          = 5 * time.Minute
)

// Sign returns the header value for body signed at ts.
func Sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + strconv.FormatInt(ts, 10) + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an inbound decision callback signed with the shared secret.
func Verify(secret string, headers http.Header, body []byte, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return ErrSigningNotConfigured
	}
	rawTS := strings.TrimSpace(headers.Get(HeaderTimestamp))
	signature := strings.TrimSpace(headers.Get(HeaderSignature))
	if rawTS == "" || signature == "" {
		return ErrInvalidSignature
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxSkew {
		return ErrStaleTimestamp
	}
	expected := Sign(secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
