package optimizer

import (
	"time"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// Stage names the pipeline steps, in execution order.
type Stage string

// Pipeline stages.
const (
	StageExpanding      Stage = "expanding"
	StageRetrieving     Stage = "retrieving"
	StageLexicalScoring Stage = "lexical_scoring"
	StageFusing         Stage = "fusing"
	StageReranking      Stage = "reranking"
	StageTruncating     Stage = "truncating"
)

// Settings are the defaults applied to fields a Request leaves unset.
type Settings struct {
	Alpha         float64
	TopK          int
	MaxExpansions int
	UseExpansion  bool
	UseHybrid     bool
	UseReranking  bool
	Retrieve      bool
	RetrieveK     int
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Alpha:         0.5,
		MaxExpansions: 3,
		UseExpansion:  true,
		UseHybrid:     true,
		UseReranking:  true,
		RetrieveK:     10,
	}
}

// Request is one optimization call. Nil switches and numbers take the live settings.
type Request struct {
	Query      string
	Candidates []domain.Document

	Alpha         *float64
	TopK          *int
	MaxExpansions *int
	UseExpansion  *bool
	UseHybrid     *bool
	UseReranking  *bool
	Retrieve      *bool
	RetrieveK     *int
}

// StageReport tells whether a stage ran and whether it fell back.
type StageReport struct {
	Stage    Stage
	Ran      bool
	Degraded bool
	Reason   string
	Duration time.Duration
}

// Response is the ranked outcome with full score provenance.
type Response struct {
	RequestID string
	Variants  []domain.QueryVariant
	Documents []domain.Document
	Stages    []StageReport
}

// resolved is a Request merged with settings.
type resolved struct {
	Settings
	query string
}

func (r *Request) resolve(s Settings) resolved {
	out := resolved{Settings: s, query: r.Query}
	if r.Alpha != nil {
		out.Alpha = *r.Alpha
	}
	if r.TopK != nil {
		out.TopK = *r.TopK
	}
	if r.MaxExpansions != nil {
		out.MaxExpansions = *r.MaxExpansions
	}
	if r.UseExpansion != nil {
		out.UseExpansion = *r.UseExpansion
	}
	if r.UseHybrid != nil {
		out.UseHybrid = *r.UseHybrid
	}
	if r.UseReranking != nil {
		out.UseReranking = *r.UseReranking
	}
	if r.Retrieve != nil {
		out.Retrieve = *r.Retrieve
	}
	if r.RetrieveK != nil {
		out.RetrieveK = *r.RetrieveK
	}
	return out
}
