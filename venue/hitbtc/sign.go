package hitbtc

import "github.com/epic1st/xchg"

// signer sets HitBTC's precomputed HTTP Basic `Authorization` header on
// every authenticated request. Unlike Binance's per-query-string HMAC or
// GDAX's per-request HMAC over method/path/body/timestamp, the header
// value never changes between requests.
type signer struct {
	keys *Keys
}

func (s *signer) Sign(req *xchg.RestRequest) {
	header := authHeader(s.keys)
	if header == "" {
		return
	}
	if req.Headers == nil {
		req.Headers = make(map[string][]string)
	}
	req.Headers.Set("Authorization", header)
}
