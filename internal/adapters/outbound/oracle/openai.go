package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

const systemPrompt = "You are an expert Kubernetes SRE assisting an autonomous " +
	"remediation controller. Given an issue and its evidence, respond ONLY with a " +
	"JSON object of the form {\"root_cause\": string, \"action\": string}. The " +
	"action must be exactly one of: IncreaseLimits, DeletePod, RestartDeployment, " +
	"ScaleDeployment, NoOp."

// Client is the go-openai backed reasoning oracle.
type Client struct {
	logger *slog.Logger
	client *openai.Client
	model  string
}

// New creates an oracle client for the given model.
func New(logger *slog.Logger, apiKey, model string) *Client {
	return &Client{
		logger: logger,
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

var _ controller.Oracle = (*Client)(nil)

type oracleAnswer struct {
	RootCause string `json:"root_cause"`
	Action    string `json:"action"`
}

// Analyze submits the issue and its capped evidence and parses the structured
// answer. Callers bound the context; any failure here degrades to the static
// fallback table upstream.
func (c *Client) Analyze(ctx context.Context, req controller.OracleRequest) (*controller.OracleResponse, error) {
	prompt := fmt.Sprintf(
		"Issue kind: %s\nResource: %s/%s (%s)\nEvidence:\n%s",
		req.IssueKind,
		req.Resource.Namespace,
		req.Resource.Name,
		req.Resource.Kind,
		req.Evidence,
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", controller.ErrOracleUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", controller.ErrOracleMalformed)
	}

	answer, err := parseAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "oracle analysis",
		"model", c.model,
		"action", answer.Action,
	)

	return &controller.OracleResponse{
		RootCause: answer.RootCause,
		Action:    answer.Action,
	}, nil
}

// parseAnswer tolerates markdown code fences around the JSON body.
func parseAnswer(content string) (*oracleAnswer, error) {
	text := strings.TrimSpace(content)

	if strings.HasPrefix(text, "```") {
		if _, rest, ok := strings.Cut(text, "\n"); ok {
			text = rest
		}

		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}

		text = strings.TrimSpace(text)
	}

	var answer oracleAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, fmt.Errorf("%w: %w", controller.ErrOracleMalformed, err)
	}

	return &answer, nil
}
