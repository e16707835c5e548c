package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	fieldKey       = "key"
	fieldPayload   = "payload"
	fieldAttempt   = "attempt"
	fieldLastError = "last_error"
	fieldError     = "error"
)

// Message 从 stream 读出的一条消息
type Message struct {
	ID      string
	Key     string // 区块哈希或幂等任务ID
	Payload []byte
	Attempt int
	Raw     redis.XMessage
}

// Decode 解析消息体，数值保留为 json.Number
func (m Message) Decode(v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(m.Payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode message %s: %w", m.ID, err)
	}
	return nil
}

// ParseMessage 解析 stream 原始消息
func ParseMessage(msg redis.XMessage) (Message, error) {
	payload, ok := msg.Values[fieldPayload]
	if !ok {
		return Message{}, fmt.Errorf("missing %s", fieldPayload)
	}

	attempt := 1
	if raw, ok := msg.Values[fieldAttempt]; ok {
		n, err := strconv.Atoi(fmt.Sprint(raw))
		if err != nil {
			return Message{}, fmt.Errorf("parsing %s: %w", fieldAttempt, err)
		}
		if n > 0 {
			attempt = n
		}
	}

	key := ""
	if raw, ok := msg.Values[fieldKey]; ok {
		key = fmt.Sprint(raw)
	}

	return Message{
		ID:      msg.ID,
		Key:     key,
		Payload: []byte(fmt.Sprint(payload)),
		Attempt: attempt,
		Raw:     msg,
	}, nil
}

func messageValues(msg Message, attempt int) map[string]interface{} {
	return map[string]interface{}{
		fieldKey:     msg.Key,
		fieldPayload: string(msg.Payload),
		fieldAttempt: attempt,
	}
}
