package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

// Task types recognised by the AI processor.
const (
	TaskSentimentAnalysis = "sentiment_analysis"
	TaskSummarization     = "summarization"
	TaskTranslation       = "translation"
	TaskCodeGeneration    = "code_generation"
	TaskMathReasoning     = "math_reasoning"
	TaskQuickDecision     = "quick_decision"
	TaskTextAnalysis      = "text_analysis"
	TaskDataExtraction    = "data_extraction"
	TaskChineseTasks      = "chinese_tasks"
	TaskLongContext       = "long_context"
	TaskContentGeneration = "content_generation"
)

// longContextThreshold is the prompt length beyond which long_context wins.
const longContextThreshold = 2000

// AIHandler runs prompts against the provider pool with task-type routing,
// daily quota enforcement, and fallback chains.
type AIHandler struct {
	pool *ProviderPool
	bus  *events.Bus
}

// NewAIHandler creates an AI processor handler.
func NewAIHandler(pool *ProviderPool, bus *events.Bus) *AIHandler {
	return &AIHandler{pool: pool, bus: bus}
}

// Execute resolves the prompt, picks a provider, and wraps the completion.
func (h *AIHandler) Execute(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*handler.Result, error) {
	rawPrompt, err := handler.ConfigString(node.Config, "prompt")
	if err != nil {
		return handler.Errorf("ai_processor requires a prompt: %v", err), nil
	}

	prompt := template.Substitute(rawPrompt, exec.Variables)
	if extra := handler.ConfigStringDefault(node.Config, "context", ""); extra != "" {
		prompt = template.Substitute(extra, exec.Variables) + "\n\n" + prompt
	}

	taskType := handler.ConfigStringDefault(node.Config, "taskType", "")
	if taskType == "" {
		taskType = DetectTaskType(prompt)
	}

	req := &CompletionRequest{
		Prompt:    prompt,
		Model:     handler.ConfigStringDefault(node.Config, "model", ""),
		MaxTokens: handler.ConfigIntDefault(node.Config, "maxTokens", 0),
	}
	if temp, ok := handler.ConfigFloat(node.Config, "temperature"); ok {
		req.Temperature = temp
	}

	directProvider := handler.ConfigStringDefault(node.Config, "aiProvider", "")

	h.bus.Publish(models.EventAIRequest, map[string]interface{}{
		"executionId": exec.ExecutionID,
		"nodeId":      node.ID,
		"taskType":    taskType,
		"provider":    directProvider,
	})

	var resp *CompletionResponse
	var provider string
	if directProvider != "" {
		provider = directProvider
		resp, err = h.pool.CompleteWith(ctx, directProvider, req)
	} else {
		resp, provider, err = h.pool.Complete(ctx, taskType, req)
	}

	if err != nil {
		h.bus.Publish(models.EventAIError, map[string]interface{}{
			"executionId": exec.ExecutionID,
			"nodeId":      node.ID,
			"taskType":    taskType,
			"error":       err.Error(),
		})
		return handler.Errorf("ai_processor failed: %v", err), nil
	}

	var response interface{} = resp.Text
	if handler.ConfigBoolDefault(node.Config, "parseJson", false) {
		var parsed interface{}
		if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &parsed); jsonErr == nil {
			response = parsed
		}
		// On parse failure the raw text is kept silently.
	}

	h.bus.Publish(models.EventAIResponse, map[string]interface{}{
		"executionId": exec.ExecutionID,
		"nodeId":      node.ID,
		"taskType":    taskType,
		"model":       resp.Model,
		"tokensUsed":  resp.TokensUsed,
	})

	return handler.Success(map[string]interface{}{
		"response":   response,
		"text":       resp.Text,
		"taskType":   taskType,
		"provider":   provider,
		"model":      resp.Model,
		"tokensUsed": resp.TokensUsed,
		"cost":       resp.Cost,
	}), nil
}

// DetectTaskType classifies a prompt by keyword when the node does not name
// a task type explicitly.
func DetectTaskType(prompt string) string {
	lower := strings.ToLower(prompt)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("sentiment", "emotion"):
		return TaskSentimentAnalysis
	case contains("summarize", "summary"):
		return TaskSummarization
	case contains("translate", "translation"):
		return TaskTranslation
	case contains("code", "program", "function"):
		return TaskCodeGeneration
	case contains("math", "calculate", "equation"):
		return TaskMathReasoning
	case contains("decide", "choose", "quick"):
		return TaskQuickDecision
	case contains("analyze", "analysis"):
		return TaskTextAnalysis
	case contains("extract", "extraction"):
		return TaskDataExtraction
	case containsCJK(prompt):
		return TaskChineseTasks
	case len(prompt) > longContextThreshold:
		return TaskLongContext
	default:
		return TaskContentGeneration
	}
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
