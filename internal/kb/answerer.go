package kb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/sony/gobreaker"

	"trustmed/internal/cache"
	"trustmed/internal/logger"
	"trustmed/internal/manifest"
	"trustmed/internal/metrics"
)

// NoResponseText replaces an empty generated answer.
const NoResponseText = "No response text was returned by Bedrock."

const opRetrieveAndGenerate = "retrieve_and_generate"

// Settings identify the knowledge base and the generating model.
type Settings struct {
	KnowledgeBaseID string
	ModelARN        string
	NumberOfResults int
}

// MissingSettings lists the environment variables behind unset settings.
func (s Settings) MissingSettings() []string {
	var missing []string

	if s.KnowledgeBaseID == "" {
		missing = append(missing, "BEDROCK_KB_ID")
	}

	if s.ModelARN == "" {
		missing = append(missing, "BEDROCK_MODEL_ARN")
	}

	return missing
}

// Answer is a generated response with its sources.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	SessionID string     `json:"sessionId,omitempty"`
	Cached    bool       `json:"-"`
}

// Content is the answer text followed by the sources block.
func (a *Answer) Content() string {
	return a.Text + FormatSources(a.Citations)
}

// Snippets returns the retrieved text of every citation.
func (a *Answer) Snippets() []string {
	out := make([]string, 0, len(a.Citations))
	for _, c := range a.Citations {
		if c.Snippet != NoSnippet {
			out = append(out, c.Snippet)
		}
	}

	return out
}

// BreakerConfig tunes the circuit breaker around knowledge base calls.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used by the chat server.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Answerer asks the knowledge base questions.
type Answerer struct {
	client   RuntimeClient
	settings Settings
	index    *manifest.Index
	breaker  *gobreaker.CircuitBreaker
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Collector
	logger   *logger.Logger
}

// NewAnswerer creates an answerer. index may be nil, in which case citations
// fall back to file names and object URIs.
func NewAnswerer(client RuntimeClient, settings Settings, index *manifest.Index, log *logger.Logger) *Answerer {
	a := &Answerer{
		client:   client,
		settings: settings,
		index:    index,
		logger:   log,
	}

	return a.WithBreaker(DefaultBreakerConfig())
}

// WithBreaker replaces the circuit breaker settings.
func (a *Answerer) WithBreaker(cfg BreakerConfig) *Answerer {
	log := a.logger

	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bedrock-knowledge-base",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return a
}

// WithCache enables answer caching for session-less questions.
func (a *Answerer) WithCache(c cache.Cache, ttl time.Duration) *Answerer {
	a.cache = c
	a.cacheTTL = ttl

	return a
}

// WithMetrics records call counts and latencies.
func (a *Answerer) WithMetrics(m *metrics.Collector) *Answerer {
	a.metrics = m
	return a
}

// Settings returns the configured knowledge base settings.
func (a *Answerer) Settings() Settings {
	return a.settings
}

// Ask sends question to the knowledge base. A non-empty sessionID continues
// an existing conversation; without one the answer may come from the cache
// and then carries no session id.
func (a *Answerer) Ask(ctx context.Context, question, sessionID string) (*Answer, error) {
	return a.ask(ctx, question, sessionID, sessionID == "")
}

// Converse is Ask for conversations. It always reaches the knowledge base so
// the answer carries a session id for the next turn.
func (a *Answerer) Converse(ctx context.Context, question, sessionID string) (*Answer, error) {
	return a.ask(ctx, question, sessionID, false)
}

func (a *Answerer) ask(ctx context.Context, question, sessionID string, cacheable bool) (*Answer, error) {
	if missing := a.settings.MissingSettings(); len(missing) > 0 {
		return nil, &MissingConfigError{Names: missing}
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if cacheable {
		if cached, ok := a.lookup(ctx, question); ok {
			return cached, nil
		}
	}

	started := time.Now()

	res, err := a.breaker.Execute(func() (interface{}, error) {
		return a.client.RetrieveAndGenerate(ctx, a.buildInput(question, sessionID))
	})

	if a.metrics != nil {
		a.metrics.ObserveBedrock(opRetrieveAndGenerate, started, err)
	}

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}

		return nil, classify(opRetrieveAndGenerate, err)
	}

	answer := a.buildAnswer(res.(*bedrockagentruntime.RetrieveAndGenerateOutput))

	a.logger.Debug("Knowledge base answered",
		"citations", len(answer.Citations),
		"session", answer.SessionID,
		"elapsed", time.Since(started).String())

	if cacheable {
		a.store(ctx, question, answer)
	}

	return answer, nil
}

func (a *Answerer) buildInput(question, sessionID string) *bedrockagentruntime.RetrieveAndGenerateInput {
	kbConfig := &types.KnowledgeBaseRetrieveAndGenerateConfiguration{
		KnowledgeBaseId: aws.String(a.settings.KnowledgeBaseID),
		ModelArn:        aws.String(a.settings.ModelARN),
	}

	if a.settings.NumberOfResults > 0 {
		kbConfig.RetrievalConfiguration = &types.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &types.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(a.settings.NumberOfResults)),
			},
		}
	}

	input := &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &types.RetrieveAndGenerateInput{Text: aws.String(question)},
		RetrieveAndGenerateConfiguration: &types.RetrieveAndGenerateConfiguration{
			Type:                       types.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: kbConfig,
		},
	}

	if sessionID != "" {
		input.SessionId = aws.String(sessionID)
	}

	return input
}

func (a *Answerer) buildAnswer(out *bedrockagentruntime.RetrieveAndGenerateOutput) *Answer {
	text := ""
	if out.Output != nil {
		text = aws.ToString(out.Output.Text)
	}

	if strings.TrimSpace(text) == "" {
		text = NoResponseText
	}

	return &Answer{
		Text:      text,
		Citations: ResolveCitations(out.Citations, a.index),
		SessionID: aws.ToString(out.SessionId),
	}
}

func (a *Answerer) lookup(ctx context.Context, question string) (*Answer, bool) {
	if a.cache == nil {
		return nil, false
	}

	raw, ok, err := a.cache.Get(ctx, cache.Key(question))
	if err != nil {
		a.logger.Warn("Answer cache read failed", "error", err)
		return nil, false
	}

	if !ok {
		a.countCache(false)
		return nil, false
	}

	var answer Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		a.logger.Warn("Discarding unreadable cached answer", "error", err)
		a.countCache(false)

		return nil, false
	}

	a.countCache(true)
	answer.Cached = true

	return &answer, true
}

// store caches answer without its session, which belongs to the asker.
func (a *Answerer) store(ctx context.Context, question string, answer *Answer) {
	if a.cache == nil || answer.Text == NoResponseText {
		return
	}

	cached := *answer
	cached.SessionID = ""

	raw, err := json.Marshal(&cached)
	if err != nil {
		return
	}

	if err := a.cache.Set(ctx, cache.Key(question), raw, a.cacheTTL); err != nil {
		a.logger.Warn("Answer cache write failed", "error", err)
	}
}

func (a *Answerer) countCache(hit bool) {
	if a.metrics == nil {
		return
	}

	if hit {
		a.metrics.CacheHits.Inc()
	} else {
		a.metrics.CacheMisses.Inc()
	}
}
