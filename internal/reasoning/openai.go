package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/yourusername/queryweaver/models"
)

// OpenAIConfig holds provider settings for the OpenAI-backed reasoner
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BaseURL     string        `mapstructure:"base_url"`
}

// OpenAIReasoner drives sessions with OpenAI chat completions. Each step
// sends the transcript and expects one JSON-encoded Action back.
type OpenAIReasoner struct {
	client *openai.Client
	config OpenAIConfig
}

const systemPrompt = `You are a data analyst answering a question against registered data sources.
Respond with exactly one JSON object and nothing else, in one of three forms:

1. Call a tool:
   {"type":"tool_call","tool_name":"get_metadata","source_id":"<source>"}
   {"type":"tool_call","tool_name":"run_targeted_query","operation":{"id":"op1","source_id":"<source>","source_type":"sql","params":{"query":"SELECT ..."}}}
2. Propose a candidate query (recorded but not yet executed):
   {"type":"query_proposal","query_text":"SELECT ...","description":"why"}
3. Deliver the final answer:
   {"type":"final_answer","final_sql":"SELECT ...","analysis":"..."}

Any form may carry an "insight" field with a short observation worth keeping.
Large results arrive sampled or summarized; the flags on each result say which.`

// NewOpenAIReasoner creates the provider. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewOpenAIReasoner(config OpenAIConfig) (*OpenAIReasoner, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}

	if config.Model == "" {
		config.Model = openai.GPT4TurboPreview
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIReasoner{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// ProposeNextStep sends the transcript and parses the returned Action.
// Transport failures surface as ErrReasoningUnavailable so the engine
// can terminate gracefully with partial state.
func (r *OpenAIReasoner) ProposeNextStep(ctx context.Context, session *models.Session) (*Action, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.config.Model,
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildTranscript(session)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrReasoningUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", models.ErrReasoningUnavailable)
	}

	return parseAction(resp.Choices[0].Message.Content)
}

// buildTranscript renders the session as the prompt for the next step
func buildTranscript(session *models.Session) string {
	var b strings.Builder

	b.WriteString("QUESTION:\n")
	b.WriteString(session.UserQuestion)
	b.WriteString("\n")

	if len(session.GeneratedQueries) > 0 {
		b.WriteString("\nQUERIES SO FAR:\n")
		for _, q := range session.GeneratedQueries {
			fmt.Fprintf(&b, "- %s", q.QueryText)
			if q.Description != "" {
				fmt.Fprintf(&b, " (%s)", q.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(session.ExecutedTools) > 0 {
		b.WriteString("\nTOOL RESULTS:\n")
		for _, t := range session.ExecutedTools {
			payload, _ := json.Marshal(t.ResultSummary)
			fmt.Fprintf(&b, "- %s: %s\n", t.ToolName, payload)
		}
	}

	if len(session.Insights) > 0 {
		b.WriteString("\nINSIGHTS:\n")
		for _, insight := range session.Insights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
	}

	b.WriteString("\nRespond with the next action as a single JSON object.")
	return b.String()
}

// parseAction decodes the model's reply, tolerating code fences
func parseAction(content string) (*Action, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var action Action
	if err := json.Unmarshal([]byte(content), &action); err != nil {
		return nil, fmt.Errorf("%w: malformed action: %v", models.ErrReasoningUnavailable, err)
	}

	switch action.Type {
	case ActionToolCall, ActionQueryProposal, ActionFinalAnswer:
		return &action, nil
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", models.ErrReasoningUnavailable, action.Type)
	}
}
