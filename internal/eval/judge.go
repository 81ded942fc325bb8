package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// Metric names.
const (
	MetricFaithfulness     = "faithfulness"
	MetricAnswerRelevancy  = "answer_relevancy"
	MetricContextPrecision = "context_precision"
	MetricContextRecall    = "context_recall"
)

// ErrUnknownMetric is returned for metric names the judge cannot grade.
var ErrUnknownMetric = errors.New("unknown metric")

// ErrUnparsableVerdict is returned when the judge reply holds no JSON verdict.
var ErrUnparsableVerdict = errors.New("judge reply has no JSON verdict")

// ConverseClient defines the Bedrock Runtime operation the judge needs.
type ConverseClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

var _ ConverseClient = (*bedrockruntime.Client)(nil)

// NewConverseClient creates a Bedrock Runtime client.
func NewConverseClient(cfg aws.Config) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(cfg)
}

const systemPrompt = `You are a strict evaluator of a medical question answering system.
Grade only what you are asked to grade. Reply with a single JSON object of the form
{"score": <number between 0 and 1>, "reason": "<one sentence>"} and nothing else.`

var instructions = map[string]string{
	MetricFaithfulness: "Score the fraction of claims in the ANSWER that are directly supported by the CONTEXTS. " +
		"Unsupported or contradicted claims lower the score.",
	MetricAnswerRelevancy: "Score how directly and completely the ANSWER addresses the QUESTION. " +
		"Evasive, off-topic or padded answers score low.",
	MetricContextPrecision: "Score the fraction of CONTEXTS that are relevant for answering the QUESTION, " +
		"weighting relevant contexts that appear earlier more heavily.",
	MetricContextRecall: "Score the fraction of statements in the REFERENCE answer that can be attributed to the CONTEXTS.",
}

// KnownMetric reports whether name can be graded.
func KnownMetric(name string) bool {
	_, ok := instructions[name]
	return ok
}

// Verdict is the judge's grade for one metric.
type Verdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Sample is what the judge sees for one question.
type Sample struct {
	Question  string
	Answer    string
	Contexts  []string
	Reference string
}

// Judge grades samples with a Bedrock-hosted model.
type Judge struct {
	client    ConverseClient
	modelID   string
	maxTokens int32
}

// NewJudge creates a judge using modelID.
func NewJudge(client ConverseClient, modelID string) *Judge {
	return &Judge{client: client, modelID: modelID, maxTokens: 300}
}

// Grade asks the judge to score one metric for sample.
func (j *Judge) Grade(ctx context.Context, metric string, sample Sample) (Verdict, error) {
	instruction, ok := instructions[metric]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	out, err := j.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(j.modelID),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: systemPrompt}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: buildPrompt(instruction, sample)}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(j.maxTokens),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("judge %s: %w", metric, err)
	}

	return ParseVerdict(replyText(out))
}

func buildPrompt(instruction string, s Sample) string {
	var b strings.Builder

	b.WriteString(instruction)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(s.Question)

	if s.Answer != "" {
		b.WriteString("\n\nANSWER:\n")
		b.WriteString(s.Answer)
	}

	if len(s.Contexts) > 0 {
		b.WriteString("\n\nCONTEXTS:\n")
		for i, c := range s.Contexts {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
		}
	}

	if s.Reference != "" {
		b.WriteString("\n\nREFERENCE:\n")
		b.WriteString(s.Reference)
	}

	return b.String()
}

func replyText(out *bedrockruntime.ConverseOutput) string {
	if out == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}

	var parts []string
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, text.Value)
		}
	}

	return strings.Join(parts, "")
}

// ParseVerdict extracts the first JSON object from a judge reply and clamps
// its score to [0,1].
func ParseVerdict(reply string) (Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")

	if start < 0 || end <= start {
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnparsableVerdict, reply)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnparsableVerdict, err)
	}

	switch {
	case v.Score < 0:
		v.Score = 0
	case v.Score > 1:
		v.Score = 1
	}

	return v, nil
}
