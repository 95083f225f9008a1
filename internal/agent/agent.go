// Package agent drives the conversation between the user, the model and the tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/draft-n-pray/internal/ai/gemini"
	"github.com/spigell/draft-n-pray/internal/logger"
)

const (
	DefaultMaxSteps  = 8
	defaultMaxLogLen = 200
)

var ErrMaxSteps = errors.New("agent reached the maximum number of steps")

type generator interface {
	Generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type toolbox interface {
	GenaiTools() []*genai.Tool
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

type EventType string

const (
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventMessage    EventType = "message"
)

// Event is emitted while a turn is in progress.
type Event struct {
	Type    EventType      `json:"type"`
	Thread  string         `json:"thread_id"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Content string         `json:"content,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Options struct {
	SystemPrompt string
	MaxSteps     int
	MaxLogLength int
}

type Agent struct {
	gen       generator
	tools     toolbox
	sessions  *Sessions
	system    string
	maxSteps  int
	maxLogLen int
	logger    *zap.Logger
}

func New(gen generator, tools toolbox, sessions *Sessions, opts Options, log *zap.Logger) *Agent {
	if sessions == nil {
		sessions = NewSessions()
	}
	if log == nil {
		log = zap.NewNop()
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}

	return &Agent{
		gen:       gen,
		tools:     tools,
		sessions:  sessions,
		system:    strings.TrimSpace(opts.SystemPrompt),
		maxSteps:  maxSteps,
		maxLogLen: maxLogLen,
		logger:    log,
	}
}

func (a *Agent) Sessions() *Sessions {
	return a.sessions
}

// Run handles one user message of thread and returns the final answer of the model.
// The thread history is updated only when the turn succeeds.
func (a *Agent) Run(ctx context.Context, thread, message string, onEvent func(Event)) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	log := logger.WithFields(a.logger, logger.Agent(thread, "")...)

	contents := a.sessions.Load(thread)
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{Tools: a.tools.GenaiTools()}
	if a.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(a.system, genai.RoleUser)
	}

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := a.gen.Generate(ctx, contents, cfg)
		if err != nil {
			return "", err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			answer := gemini.ResponseText(resp)
			if answer == "" {
				return "", errors.New("model returned an empty answer")
			}

			contents = append(contents, genai.NewContentFromText(answer, genai.RoleModel))
			a.sessions.Save(thread, contents)

			log.Debug("turn finished", zap.Int("steps", step), zap.Int("history", len(contents)))
			onEvent(Event{Type: EventMessage, Thread: thread, Content: answer})
			return answer, nil
		}

		contents = append(contents, modelContent(resp, calls))

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			parts = append(parts, a.call(ctx, log, thread, call, onEvent))
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}

	return "", fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
}

// call executes a single function call. Tool failures are reported back to the model.
func (a *Agent) call(ctx context.Context, log *zap.Logger, thread string, call *genai.FunctionCall, onEvent func(Event)) *genai.Part {
	log = log.With(zap.String(logger.FieldTool, call.Name))
	log.Info("calling tool", zap.Any("args", call.Args))
	onEvent(Event{Type: EventToolCall, Thread: thread, Tool: call.Name, Args: call.Args})

	output, err := a.tools.Call(ctx, call.Name, call.Args)

	response := map[string]any{"output": output}
	event := Event{Type: EventToolResult, Thread: thread, Tool: call.Name, Content: output}
	if err != nil {
		log.Warn("tool failed", zap.Error(err))
		response = map[string]any{"error": err.Error()}
		event.Error = err.Error()
	} else {
		log.Debug("tool finished", logger.Preview("output_preview", output, a.maxLogLen))
	}
	onEvent(event)

	part := genai.NewPartFromFunctionResponse(call.Name, response)
	part.FunctionResponse.ID = call.ID
	return part
}

// modelContent returns the model turn that requested calls, as it must be replayed in the history.
func modelContent(resp *genai.GenerateContentResponse, calls []*genai.FunctionCall) *genai.Content {
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].Content != nil {
		return resp.Candidates[0].Content
	}

	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return genai.NewContentFromParts(parts, genai.RoleModel)
}
