package gdax

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/epic1st/xchg"
)

// signer implements the GDAX REST signing scheme: HMAC-SHA256, keyed by
// the base64-decoded secret key, over `timestamp||method/path||body`,
// base64-encoded and carried in four CB-ACCESS-* headers.
type signer struct {
	keys *Keys
}

func (s *signer) Sign(req *xchg.RestRequest) {
	if s.keys == nil {
		return
	}

	timestamp := float64(time.Now().UnixMilli()) / 1000.0
	ts := strconv.FormatFloat(timestamp, 'f', 3, 64)

	what := ts + req.Method + "/" + req.Path + string(req.Body)
	signature, err := hmacBase64(s.keys.SecretKey, what)
	if err != nil {
		return
	}

	if req.Headers == nil {
		req.Headers = make(map[string][]string)
	}
	req.Headers.Set("CB-ACCESS-KEY", s.keys.APIKey)
	req.Headers.Set("CB-ACCESS-SIGN", signature)
	req.Headers.Set("CB-ACCESS-TIMESTAMP", ts)
	req.Headers.Set("CB-ACCESS-PASSPHRASE", s.keys.PassPhrase)
}

// hmacBase64 HMAC-SHA256-signs what, keyed by the base64-decoded secret
// (GDAX issues secret keys as base64), and returns the base64-encoded
// digest. Shared by REST request signing and the WebSocket user channel's
// auth block.
func hmacBase64(base64Secret, what string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		secret = []byte(base64Secret)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(what))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
