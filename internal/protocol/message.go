package protocol

import "encoding/json"

// MessageType 实时推送的消息类型
type MessageType string

const (
	MessageTypePingResult MessageType = "ping_result" // 探测结果
	MessageTypeAlert      MessageType = "alert"       // 告警事件
)

// Message 推送给订阅端的消息
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode 将 payload 包装为消息并序列化
func Encode(messageType MessageType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type: messageType,
		Data: data,
	})
}
