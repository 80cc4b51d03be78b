package messaging

import (
	"sort"
	"strings"

	"github.com/segmentio/kafka-go"
)

// HeaderCarrier lets otel propagators and the consumer's failure logging read
// and write kafka headers. Keys match case-insensitively because producers
// outside this repo are free to send "Traceparent" as well as "traceparent".
type HeaderCarrier struct {
	msg *kafka.Message
}

func NewHeaderCarrier(msg *kafka.Message) *HeaderCarrier {
	return &HeaderCarrier{msg: msg}
}

func (c *HeaderCarrier) index(key string) int {
	for i, h := range c.msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return i
		}
	}
	return -1
}

func (c *HeaderCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string(c.msg.Headers[i].Value)
	}
	return ""
}

// Set replaces the first header matching key and keeps the original casing of
// its name.
func (c *HeaderCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		c.msg.Headers[i].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// LogAttrs returns key/value pairs for the named headers that are present,
// ready to append to a slog call.
func (c *HeaderCarrier) LogAttrs(keys []string) []any {
	var attrs []any
	for _, k := range keys {
		if v := c.Get(k); v != "" {
			attrs = append(attrs, k, v)
		}
	}
	return attrs
}

// SetAll copies headers onto the message in key order so identical inputs
// produce identical messages.
func (c *HeaderCarrier) SetAll(headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.Set(k, headers[k])
	}
}
