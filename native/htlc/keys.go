package htlc

import "strings"

var (
	orderPrefix      = []byte("htlc/order/")
	resolverPrefix   = []byte("htlc/resolver/")
	resolverCountKey = []byte("htlc/resolver-count")
	configKey        = []byte("htlc/config")
)

func orderKey(orderID string) []byte {
	trimmed := strings.TrimSpace(orderID)
	buf := make([]byte, len(orderPrefix)+len(trimmed))
	copy(buf, orderPrefix)
	copy(buf[len(orderPrefix):], trimmed)
	return buf
}

func resolverKey(addr string) []byte {
	trimmed := strings.TrimSpace(addr)
	buf := make([]byte, len(resolverPrefix)+len(trimmed))
	copy(buf, resolverPrefix)
	copy(buf[len(resolverPrefix):], trimmed)
	return buf
}
