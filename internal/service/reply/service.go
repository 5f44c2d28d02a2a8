package reply

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"emailwriter/internal/model"
	"emailwriter/pkg/logger"
	"emailwriter/pkg/metrics"
	"emailwriter/pkg/util"
)

// ErrorReply 任何生成失败都渲染成这段固定文本
const ErrorReply = "Error generating email reply"

const promptInstruction = "Generate a professional email or reply for the following email content. " +
	"Please don't generate a subject line, look at the prompt below and generate a reply based on the content provided.\n\n"

// ContentGenerator 下游文本生成接口
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Result 一次生成的结果，Err 非空表示失败
type Result struct {
	Text string
	Err  error
}

// OK 是否成功
func (r Result) OK() bool {
	return r.Err == nil
}

// Reply 对外渲染的文本
func (r Result) Reply() string {
	if r.Err != nil {
		return ErrorReply
	}
	return r.Text
}

type Service struct {
	generator ContentGenerator
	logger    *zap.Logger
}

func NewService(generator ContentGenerator, logger *zap.Logger) *Service {
	return &Service{
		generator: generator,
		logger:    logger,
	}
}

// BuildPrompt 拼接 prompt。tone 子句后面不加分隔符
func BuildPrompt(req model.EmailRequest) string {
	var sb strings.Builder
	sb.WriteString(promptInstruction)

	if tone := req.ToneValue(); tone != "" {
		sb.WriteString("Use a ")
		sb.WriteString(tone)
		sb.WriteString(" tone")
	}

	sb.WriteString("Original email content: \n")
	sb.WriteString(req.EmailContent)
	return sb.String()
}

// GenerateReply 不会 panic，所有失败都收敛到 Result.Err
func (s *Service) GenerateReply(ctx context.Context, req model.EmailRequest) (result Result) {
	log := logger.WithTrace(ctx, s.logger)

	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: fmt.Errorf("panic while generating reply: %v", r)}
		}
		s.record(log, result)
	}()

	text, err := s.generator.GenerateContent(ctx, BuildPrompt(req))
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: text}
}

// Reply 直接返回要写给调用方的文本
func (s *Service) Reply(ctx context.Context, req model.EmailRequest) string {
	return s.GenerateReply(ctx, req).Reply()
}

func (s *Service) record(log *zap.Logger, result Result) {
	if result.OK() {
		metrics.IncrementReplyGenerated("success")
		return
	}

	kind := util.ClassifyGenerationError(result.Err)
	metrics.IncrementReplyGenerated("failed")
	metrics.IncrementReplyFailure(kind)

	if kind == util.KindCanceled {
		log.Warn("Reply generation canceled by caller", zap.Error(result.Err))
		return
	}
	log.Error("Error processing response",
		zap.String("failure_kind", kind),
		zap.Error(result.Err),
	)
}
