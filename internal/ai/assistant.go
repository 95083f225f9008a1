// Package ai describes the language-model capabilities the assistant relies on.
package ai

import (
	"context"
)

// Embedder turns texts into vectors for similarity search.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// Publication is a recent paper of the recipient.
type Publication struct {
	Title    string `json:"title" yaml:"title"`
	Year     string `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// Recipient is what the model extracted about the person being contacted.
type Recipient struct {
	Name              string        `json:"name" yaml:"name"`
	Email             string        `json:"email,omitempty" yaml:"email,omitempty"`
	Phone             string        `json:"phone,omitempty" yaml:"phone,omitempty"`
	Institution       string        `json:"institution,omitempty" yaml:"institution,omitempty"`
	Position          string        `json:"position,omitempty" yaml:"position,omitempty"`
	ResearchInterests []string      `json:"research_interests,omitempty" yaml:"research-interests,omitempty"`
	Publications      []Publication `json:"publications,omitempty" yaml:"publications,omitempty"`
}

// Draft is a ready-to-send outreach email with a fit assessment.
type Draft struct {
	Recipient Recipient `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	// FitScore is the estimated fit in percent, 0-100.
	FitScore float64 `json:"fit_score"`
	Fit      bool    `json:"fit"`
	Reason   string  `json:"reason"`
	// WeakPoints lists gaps of the CV relevant to this recipient.
	WeakPoints []string `json:"weak_points,omitempty"`
	Raw        string   `json:"-"`
}

// DraftRequest carries everything the drafter needs to know about one recipient.
type DraftRequest struct {
	URL string
	// Profile is the crawled recipient page content as markdown.
	Profile string
	// CVExcerpts are the most relevant knowledge-base chunks.
	CVExcerpts []string
}

// Drafter writes an outreach email for a recipient.
type Drafter interface {
	Draft(ctx context.Context, req DraftRequest) (*Draft, error)
}
