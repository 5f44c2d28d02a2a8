package gemini

import "encoding/json"

// Part 单段文本
type Part struct {
	Text string `json:"text"`
}

// Content 一条消息内容
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerateContentRequest generateContent 请求体
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// APIError Gemini 返回的错误体
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// 响应只沿 candidates[0].content.parts[0].text 逐层解码，
// 其余字段（finishReason、role、usageMetadata 等）形状不对也不影响结果。
type generateContentResponse struct {
	Candidates []json.RawMessage `json:"candidates"`
	Error      json.RawMessage   `json:"error"`
}

type responseCandidate struct {
	Content *responseContent `json:"content"`
}

type responseContent struct {
	Parts []json.RawMessage `json:"parts"`
}

type responsePart struct {
	Text json.RawMessage `json:"text"`
}
