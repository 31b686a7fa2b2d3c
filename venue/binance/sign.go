package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/epic1st/xchg"
)

// signer implements the Binance REST signing scheme: the query string
// with a `timestamp` param appended, HMAC-SHA256'd to hex and carried as
// a trailing `signature` param.
type signer struct {
	keys *Keys
}

func (s *signer) Sign(req *xchg.RestRequest) {
	if s.keys == nil {
		return
	}
	if req.Query == nil {
		req.Query = url.Values{}
	}
	timestamp := time.Now().UnixMilli()
	req.Query.Set("timestamp", fmt.Sprintf("%d", timestamp))

	mac := hmac.New(sha256.New, []byte(s.keys.SecretKey))
	mac.Write([]byte(req.Query.Encode()))
	signature := hex.EncodeToString(mac.Sum(nil))
	req.Query.Set("signature", signature)

	if req.Headers == nil {
		req.Headers = make(map[string][]string)
	}
	req.Headers.Set("X-MBX-APIKEY", s.keys.APIKey)
}
