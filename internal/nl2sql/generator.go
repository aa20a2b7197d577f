// Package nl2sql turns an English question and a schema snapshot into a MySQL
// statement using a hosted language model.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
)

var (
	// ErrGeneration covers every way SQL generation can fail.
	ErrGeneration = errors.New("sql generation failed")
	// ErrQuestionRequired is returned before any model call for a blank question.
	ErrQuestionRequired = fmt.Errorf("%w: question is required", ErrGeneration)
)

// ModelClient sends one prompt to a hosted model and returns its reply.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (Response, error)
	Provider() string
	Model() string
}

type Result struct {
	SQL      string        `json:"sql"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"-"`
}

type Generator struct {
	Client ModelClient
	Logger *slog.Logger
}

func NewGenerator(client ModelClient, logger *slog.Logger) *Generator {
	return &Generator{Client: client, Logger: logger}
}

// Generate makes exactly one model call for a non-blank question. The
// returned SQL is the model text with fences stripped, not validated.
func (g *Generator) Generate(ctx context.Context, question string, snapshot *schema.Snapshot) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, ErrQuestionRequired
	}
	if g == nil || g.Client == nil {
		return Result{}, fmt.Errorf("%w: model client is not configured", ErrGeneration)
	}

	prompt := BuildPrompt(schema.FormatSchema(snapshot), question)
	provider, model := g.Client.Provider(), g.Client.Model()

	start := time.Now()
	sql, err := g.complete(ctx, prompt)
	elapsed := time.Since(start)
	observability.ObserveGeneration(provider, elapsed, err)

	if err != nil {
		if g.Logger != nil {
			g.Logger.WarnContext(ctx, "sql generation failed",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("provider", provider),
				slog.String("model", model),
				slog.Duration("duration", elapsed),
				slog.Any("error", err),
			)
		}
		return Result{}, err
	}
	return Result{SQL: sql, Provider: provider, Model: model, Duration: elapsed}, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.Client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, ErrNoText)
	}
	text, err := resp.ExtractText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	sql := NormalizeSQL(text)
	if sql == "" {
		return "", fmt.Errorf("%w: model returned empty SQL", ErrGeneration)
	}
	return sql, nil
}
