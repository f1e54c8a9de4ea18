// Package llmjudge implements the evaluation judge on an OpenAI-compatible
// chat completion API.
package llmjudge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	"github.com/inf-monkeys/arena/internal/attr"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second

	systemPrompt = `You are an impartial judge comparing two candidate assets in a pairwise battle.
Judge strictly by the evaluation criteria you are given.
Respond with a single JSON object and nothing else:
{"winner": "A" | "B" | "draw", "reason": "<one or two sentences>"}`
)

// Config carries the judge's connection settings.
type Config struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	DefaultModel   string  `yaml:"default_model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// LLMJudge renders battle verdicts through a chat completion model.
type LLMJudge struct {
	client       *openai.Client
	limiter      *rate.Limiter
	timeout      time.Duration
	defaultModel string
	logger       *slog.Logger
}

var _ evaluationservice.Judge = (*LLMJudge)(nil)

// New builds an LLMJudge from config. The base URL override supports
// OpenAI-compatible gateways.
func New(cfg Config, logger *slog.Logger) (*LLMJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm judge requires an API key")
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	return &LLMJudge{
		client:       openai.NewClientWithConfig(clientConfig),
		limiter:      limiter,
		timeout:      timeout,
		defaultModel: model,
		logger:       logger,
	}, nil
}

// Judge asks the model for a verdict on one battle.
func (j *LLMJudge) Judge(ctx context.Context, req evaluationservice.JudgeRequest) (evaluationservice.JudgeVerdict, error) {
	if err := j.limiter.Wait(ctx); err != nil {
		return evaluationservice.JudgeVerdict{}, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = j.defaultModel
	}

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return evaluationservice.JudgeVerdict{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return evaluationservice.JudgeVerdict{}, fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	verdict := parseVerdict(content)
	j.logger.DebugContext(ctx, "Judge verdict",
		attr.String("model", model),
		attr.String("result", string(verdict.Result)),
	)
	return verdict, nil
}

func buildPrompt(req evaluationservice.JudgeRequest) string {
	var b strings.Builder
	if req.EvaluationCriteria != "" {
		fmt.Fprintf(&b, "Evaluation criteria: %s\n", req.EvaluationCriteria)
	}
	if req.EvaluationFocus != "" {
		fmt.Fprintf(&b, "Focus on: %s\n", req.EvaluationFocus)
	}
	fmt.Fprintf(&b, "\nCandidate A: %s\nCandidate B: %s\n", req.AssetA, req.AssetB)
	b.WriteString("\nWhich candidate wins?")
	return b.String()
}

type verdictJSON struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

// parseVerdict reads the model's JSON answer. Models occasionally wrap the
// JSON in prose or code fences, so the parser looks for the outermost object
// first. Anything unreadable falls back to a draw rather than failing the
// battle.
func parseVerdict(content string) evaluationservice.JudgeVerdict {
	raw := content
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	var v verdictJSON
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return evaluationservice.JudgeVerdict{
			Result: evaluationtypes.BattleResultDraw,
			Reason: fmt.Sprintf("unparseable verdict, treated as draw: %s", truncate(content, 200)),
		}
	}

	reason := v.Reason
	switch strings.ToUpper(strings.TrimSpace(v.Winner)) {
	case "A":
		return evaluationservice.JudgeVerdict{Result: evaluationtypes.BattleResultAWin, Reason: reason}
	case "B":
		return evaluationservice.JudgeVerdict{Result: evaluationtypes.BattleResultBWin, Reason: reason}
	case "DRAW", "TIE":
		return evaluationservice.JudgeVerdict{Result: evaluationtypes.BattleResultDraw, Reason: reason}
	default:
		return evaluationservice.JudgeVerdict{
			Result: evaluationtypes.BattleResultDraw,
			Reason: fmt.Sprintf("unknown winner %q, treated as draw", v.Winner),
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
