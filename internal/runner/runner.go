package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jthornhill/finagent/internal/provider"
	"github.com/jthornhill/finagent/internal/telemetry"
	"github.com/jthornhill/finagent/tools"
)

// ErrTurnLimit reports a conversation that kept requesting tools without
// concluding within MaxTurns round trips.
var ErrTurnLimit = errors.New("conversation exceeded turn limit")

// DefaultMaxTurns bounds the model/tool round trips of one conversation.
const DefaultMaxTurns = 8

// DefaultCallTimeout bounds a single model call.
const DefaultCallTimeout = 60 * time.Second

// Runner drives bounded conversations with the model, dispatching tool
// calls through the registry. The zero values of Model, MaxTokens,
// MaxTurns, and CallTimeout select the defaults.
type Runner struct {
	Client      *anthropic.Client
	Registry    *tools.Registry
	Model       anthropic.Model
	MaxTokens   int64
	MaxTurns    int
	CallTimeout time.Duration
}

func New(client *anthropic.Client, reg *tools.Registry) *Runner {
	return &Runner{Client: client, Registry: reg}
}

func (r *Runner) model() anthropic.Model {
	if r.Model != "" {
		return r.Model
	}
	return provider.DefaultModel
}

func (r *Runner) maxTokens() int64 {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return provider.DefaultMaxTokens
}

func (r *Runner) maxTurns() int {
	if r.MaxTurns > 0 {
		return r.MaxTurns
	}
	return DefaultMaxTurns
}

// Run sends prompt together with the registry's tool specs and loops
// until the model concludes with a text answer. Every tool_use block is
// executed in emission order and all results of a turn are bundled into
// a single user message. Transport errors abort the conversation; tool
// errors are reported inline and the conversation continues.
func (r *Runner) Run(ctx context.Context, prompt string) (string, error) {
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = fmt.Sprintf("turn-%d", time.Now().UnixNano())
		ctx = telemetry.WithTurnID(ctx, turnID)
	}
	telemetry.EmitTextFeatures(ctx, "prompt", prompt)

	conv := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}

	var toolParams []anthropic.ToolUnionParam
	if r.Registry != nil {
		toolParams = r.Registry.Params()
	}

	for turn := 0; turn < r.maxTurns(); turn++ {
		msg, err := r.step(ctx, conv, toolParams)
		if err != nil {
			return "", err
		}

		var toolResults []anthropic.ContentBlockParamUnion
		if msg.StopReason == "tool_use" {
			for _, block := range msg.Content {
				if v, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
					// Pass raw JSON input through to the tool implementation.
					input := json.RawMessage(v.JSON.Input.Raw())
					toolResults = append(toolResults, r.Registry.Invoke(ctx, v.ID, v.Name, input))
				}
			}
		}

		telemetry.Emit("turn_completed", map[string]any{
			"turn_id":      turnID,
			"model":        string(r.model()),
			"round":        turn,
			"stop_reason":  string(msg.StopReason),
			"tool_results": len(toolResults),
		})

		if len(toolResults) == 0 {
			out := collectText(msg)
			telemetry.EmitTextFeatures(ctx, "final_text", out)
			return out, nil
		}

		conv = append(conv, msg.ToParam())
		conv = append(conv, anthropic.NewUserMessage(toolResults...))
	}

	return "", fmt.Errorf("%w after %d rounds", ErrTurnLimit, r.maxTurns())
}

// ExtractOnce performs a single non-tool-calling request carrying a
// base64-encoded image and an extraction instruction, returning the raw
// text of the response.
func (r *Runner) ExtractOnce(ctx context.Context, prompt, mediaType, imageB64 string) (string, error) {
	conv := []anthropic.MessageParam{
		anthropic.NewUserMessage(
			anthropic.NewImageBlockBase64(mediaType, imageB64),
			anthropic.NewTextBlock(prompt),
		),
	}
	msg, err := r.step(ctx, conv, nil)
	if err != nil {
		return "", err
	}
	return collectText(msg), nil
}

// step issues one model call with a per-call timeout.
func (r *Runner) step(ctx context.Context, conv []anthropic.MessageParam, toolParams []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	timeout := r.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     r.model(),
		MaxTokens: r.maxTokens(),
		Messages:  conv,
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}
	return r.Client.Messages.New(callCtx, params)
}

// collectText joins the text blocks of a response in order.
func collectText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
