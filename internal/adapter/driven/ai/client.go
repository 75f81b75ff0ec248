// Package ai implements the Analyzer port against LLM inference backends.
// Groq (OpenAI-compatible API) is the primary provider; requests rotate
// round-robin through the configured keys and fail over to Anthropic when
// every Groq key has been exhausted.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/calebmoore/codereviewer/internal/domain/model"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Analyzer = (*Client)(nil)

// Config holds provider credentials and model selection. At least one Groq
// key or an Anthropic key must be set.
type Config struct {
	GroqAPIKeys     []string
	GroqBaseURL     string
	GroqModel       string
	AnthropicAPIKey string
	AnthropicModel  string
}

// Client implements the driven.Analyzer port.
type Client struct {
	groq      []*openai.Client
	groqModel string

	anthropic      *anthropic.Client
	anthropicModel string

	mu   sync.Mutex
	next int // round-robin index into groq

	logger *slog.Logger
}

// NewClient builds a Client from the config. One OpenAI-compatible client is
// created per Groq key so failed keys can be skipped without re-dialing.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	c := &Client{
		groqModel:      cfg.GroqModel,
		anthropicModel: cfg.AnthropicModel,
		logger:         logger,
	}

	for _, key := range cfg.GroqAPIKeys {
		if key == "" {
			continue
		}
		conf := openai.DefaultConfig(key)
		if cfg.GroqBaseURL != "" {
			conf.BaseURL = cfg.GroqBaseURL
		}
		c.groq = append(c.groq, openai.NewClientWithConfig(conf))
	}

	if cfg.AnthropicAPIKey != "" {
		c.anthropic = anthropic.NewClient(cfg.AnthropicAPIKey)
	}

	if len(c.groq) == 0 && c.anthropic == nil {
		return nil, errors.New("no AI provider configured")
	}

	logger.Info("ai client initialized",
		"groq_keys", len(c.groq),
		"anthropic", c.anthropic != nil,
	)

	return c, nil
}

// generate sends a single-turn prompt through the provider chain and returns
// the raw completion text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	var errs []error

	for attempt := 0; attempt < len(c.groq); attempt++ {
		client, keyIndex := c.nextGroq()

		text, err := c.generateGroq(ctx, client, prompt)
		if err != nil {
			c.logger.Warn("groq request failed", "key", keyIndex, "error", err)
			errs = append(errs, fmt.Errorf("groq key %d: %w", keyIndex, err))
			continue
		}
		return text, nil
	}

	if c.anthropic != nil {
		text, err := c.generateAnthropic(ctx, prompt)
		if err != nil {
			c.logger.Warn("anthropic request failed", "error", err)
			errs = append(errs, fmt.Errorf("anthropic: %w", err))
		} else {
			return text, nil
		}
	}

	return "", fmt.Errorf("all ai providers failed: %w", errors.Join(errs...))
}

// nextGroq returns the next client in rotation along with its index.
func (c *Client) nextGroq() (*openai.Client, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.next
	c.next = (c.next + 1) % len(c.groq)
	return c.groq[i], i
}

func (c *Client) generateGroq(ctx context.Context, client *openai.Client, prompt string) (string, error) {
	temperature := float32(0.2)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.groqModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) generateAnthropic(ctx context.Context, prompt string) (string, error) {
	resp, err := c.anthropic.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.anthropicModel),
		MaxTokens: 4096,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
			},
		},
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty completion")
	}
	return text.String(), nil
}

// AnalyzeCode reviews a complete file and returns the findings.
func (c *Client) AnalyzeCode(ctx context.Context, code, filename string) (*model.Report, error) {
	c.logger.Info("analyzing file", "filename", filename)

	text, err := c.generate(ctx, analyzeCodePrompt(code, filename))
	if err != nil {
		return nil, err
	}

	report, err := parseReport(text)
	if err != nil {
		return nil, fmt.Errorf("parsing analysis for %s: %w", filename, err)
	}
	report.Filename = filename
	return report, nil
}

// AnalyzeDiff reviews a raw unified diff.
func (c *Client) AnalyzeDiff(ctx context.Context, diff string) (*model.Report, error) {
	text, err := c.generate(ctx, analyzeDiffPrompt(diff))
	if err != nil {
		return nil, err
	}

	report, err := parseReport(text)
	if err != nil {
		return nil, fmt.Errorf("parsing diff analysis: %w", err)
	}
	return report, nil
}

// GenerateFix rewrites code to address one specific issue. The returned
// string is the complete corrected file, never a patch.
func (c *Client) GenerateFix(ctx context.Context, code string, issue model.Issue) (string, error) {
	text, err := c.generate(ctx, generateFixPrompt(code, issue))
	if err != nil {
		return "", err
	}

	fixed := stripCodeFences(text)
	if fixed == "" {
		return "", errors.New("fix generation returned empty code")
	}
	return fixed, nil
}

// Chat answers a conversational message. Push and code-change intent are
// detected locally from keywords before any inference call: a push request
// never reaches the LLM, and a change request uses a structured prompt whose
// JSON reply carries the full rewritten file.
func (c *Client) Chat(ctx context.Context, req driven.ChatRequest) (*model.ChatReply, error) {
	if detectPushIntent(req.Message) {
		if req.Context.Filename == "" || req.Context.Code == "" {
			return &model.ChatReply{
				Response: "No code to push. Open a file with changes first.",
			}, nil
		}
		msg := commitMessageFor(req.Message, req.Context.Filename)
		return &model.ChatReply{
			Response:      fmt.Sprintf("Committing %s with message: %s", req.Context.Filename, msg),
			PushRequested: true,
			CommitMessage: msg,
		}, nil
	}

	if detectChangeIntent(req.Message) && req.Context.Code != "" {
		return c.applyRequestedChanges(ctx, req)
	}

	text, err := c.generate(ctx, chatPrompt(req))
	if err != nil {
		return nil, err
	}
	return &model.ChatReply{Response: text}, nil
}

func (c *Client) applyRequestedChanges(ctx context.Context, req driven.ChatRequest) (*model.ChatReply, error) {
	c.logger.Info("code modification request detected", "filename", req.Context.Filename)

	text, err := c.generate(ctx, applyChangesPrompt(req))
	if err != nil {
		return nil, err
	}

	change, err := parseChangeResult(text)
	if err != nil {
		// The model ignored the JSON contract; fall back to any fenced
		// code block in the raw response.
		if code := firstFencedBlock(text); code != "" {
			return &model.ChatReply{
				Response:     "Changes applied (extracted from response).",
				CodeModified: true,
				ModifiedCode: code,
			}, nil
		}
		return &model.ChatReply{
			Response: "Could not parse the assistant response:\n\n" + text,
		}, nil
	}

	reply := &model.ChatReply{
		Response:     change.Explanation,
		CodeModified: change.ModifiedCode != "",
		ModifiedCode: change.ModifiedCode,
	}
	if change.ChangesSummary != "" {
		reply.Response += "\n\n" + change.ChangesSummary
	}
	return reply, nil
}
