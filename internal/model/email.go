package model

// EmailRequest 前端插件提交的生成请求
type EmailRequest struct {
	EmailContent string  `json:"emailContent"`
	Tone         *string `json:"tone"`
}

// ToneValue 返回语气，nil 时为空字符串
func (r EmailRequest) ToneValue() string {
	if r.Tone == nil {
		return ""
	}
	return *r.Tone
}
