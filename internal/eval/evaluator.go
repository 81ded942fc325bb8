package eval

import (
	"context"
	"fmt"
	"time"

	"trustmed/internal/kb"
	"trustmed/internal/logger"
)

// Asker answers a question from the knowledge base.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string) (*kb.Answer, error)
}

// Grader scores one metric for a sample.
type Grader interface {
	Grade(ctx context.Context, metric string, sample Sample) (Verdict, error)
}

var _ Grader = (*Judge)(nil)

// Evaluator runs a dataset through the knowledge base and the judge.
type Evaluator struct {
	asker   Asker
	grader  Grader
	metrics []string
	logger  *logger.Logger
	now     func() time.Time
}

// NewEvaluator creates an evaluator for the given metrics.
func NewEvaluator(asker Asker, grader Grader, metrics []string, log *logger.Logger) (*Evaluator, error) {
	for _, m := range metrics {
		if !KnownMetric(m) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, m)
		}
	}

	return &Evaluator{
		asker:   asker,
		grader:  grader,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}, nil
}

// Run evaluates every item in order. Failures are recorded on the item and
// do not stop the run; only a cancelled context does, and the report
// returned with that error is summarized over the items done so far.
func (e *Evaluator) Run(ctx context.Context, items []Item) (*Report, error) {
	report := &Report{
		GeneratedAt: e.now().UTC().Format(time.RFC3339),
		Metrics:     e.metrics,
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			report.summarize()
			return report, err
		}

		e.logger.Info(fmt.Sprintf("Evaluating %d/%d", i+1, len(items)), "question", item.Question)

		report.Items = append(report.Items, e.evaluate(ctx, item))
	}

	report.summarize()

	return report, nil
}

func (e *Evaluator) evaluate(ctx context.Context, item Item) ItemResult {
	res := ItemResult{
		Question:  item.Question,
		Reference: item.Reference,
		Scores:    map[string]float64{},
		Reasons:   map[string]string{},
	}

	sample := Sample{Question: item.Question, Reference: item.Reference}

	if item.Recorded() {
		sample.Answer = item.Answer
		sample.Contexts = item.Contexts
	} else {
		answer, err := e.asker.Ask(ctx, item.Question, "")
		if err != nil {
			e.logger.Error("Knowledge base call failed", "question", item.Question, "error", err)
			res.Error = err.Error()

			return res
		}

		sample.Answer = answer.Text
		sample.Contexts = answer.Snippets()

		if len(item.Contexts) > 0 {
			sample.Contexts = item.Contexts
		}
	}

	res.Answer = sample.Answer
	res.Contexts = sample.Contexts

	for _, metric := range e.metrics {
		if skip, reason := skipMetric(metric, sample); skip {
			if reason != "" {
				res.Scores[metric] = 0
				res.Reasons[metric] = reason
			}

			continue
		}

		v, err := e.grader.Grade(ctx, metric, sample)
		if err != nil {
			e.logger.Warn("Judge failed", "metric", metric, "error", err)
			res.Reasons[metric] = "judge error: " + err.Error()

			continue
		}

		res.Scores[metric] = v.Score
		res.Reasons[metric] = v.Reason
	}

	return res
}

// skipMetric decides whether a metric can be graded. A non-empty reason
// means the metric scores zero; an empty reason means it does not apply.
func skipMetric(metric string, s Sample) (bool, string) {
	switch metric {
	case MetricContextRecall:
		if s.Reference == "" {
			return true, ""
		}

		if len(s.Contexts) == 0 {
			return true, "no contexts retrieved"
		}
	case MetricFaithfulness, MetricContextPrecision:
		if len(s.Contexts) == 0 {
			return true, "no contexts retrieved"
		}
	}

	return false, ""
}
