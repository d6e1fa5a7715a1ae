// Package routellm picks and calls AI providers for coaching queries,
// trading cost against quality while keeping private data on device.
package routellm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mindmate-hq/routellm/internal/llm"
)

var (
	// ErrAllProvidersExhausted indicates every candidate in the chain failed
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrNoEligibleProvider indicates the privacy gate left nothing to call
	ErrNoEligibleProvider = errors.New("no eligible provider")
	// ErrEmptyQuery indicates a blank query
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrUnknownFeature indicates a feature tag outside the catalog
	ErrUnknownFeature = errors.New("unknown feature")
)

// Feature tags the product surface a query comes from
type Feature string

const (
	FeatureChatCoaching        Feature = "chat_coaching"
	FeaturePersonalityAnalysis Feature = "personality_analysis"
	FeatureGoalPlanning        Feature = "goal_planning"
	FeatureJournalReflection   Feature = "journal_reflection"
	FeatureWeeklyReport        Feature = "weekly_report"
	FeatureQuickTip            Feature = "quick_tip"
)

// Features lists every known feature tag
func Features() []Feature {
	return []Feature{
		FeatureChatCoaching,
		FeaturePersonalityAnalysis,
		FeatureGoalPlanning,
		FeatureJournalReflection,
		FeatureWeeklyReport,
		FeatureQuickTip,
	}
}

// ParseFeature parses a feature tag. An empty tag means chat coaching.
func ParseFeature(s string) (Feature, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FeatureChatCoaching, nil
	}
	for _, f := range Features() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
}

// PrivacyLevel classifies how sensitive a query is
type PrivacyLevel string

const (
	PrivacyPublic    PrivacyLevel = "PUBLIC"
	PrivacyPrivate   PrivacyLevel = "PRIVATE"
	PrivacySensitive PrivacyLevel = "SENSITIVE"
)

// ParsePrivacyLevel normalizes a privacy marker. Unknown and empty markers
// are kept as given; the privacy gate treats anything but PUBLIC as private.
func ParsePrivacyLevel(s string) PrivacyLevel {
	return PrivacyLevel(strings.ToUpper(strings.TrimSpace(s)))
}

// AllowsExternal reports whether queries at this level may leave the device
func (p PrivacyLevel) AllowsExternal() bool {
	return p == PrivacyPublic
}

// Role biases selection toward a kind of strength
type Role string

const (
	RoleNone       Role = ""
	RoleCreative   Role = "creative"
	RoleAnalytical Role = "analytical"
	RoleCautious   Role = "cautious"
)

// ParseRole parses a role name; empty means no role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleNone, RoleCreative, RoleAnalytical, RoleCautious:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Query is the immutable input to one routing decision
type Query struct {
	Query        string       `json:"query"`
	Feature      Feature      `json:"feature"`
	PrivacyLevel PrivacyLevel `json:"privacy_level"`
	Role         Role         `json:"role,omitempty"`
}

// Validate rejects blank queries and unknown features
func (q Query) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.Feature != "" {
		if _, err := ParseFeature(string(q.Feature)); err != nil {
			return err
		}
	}
	return nil
}

// Candidate is one (provider, model) pair a decision may call
type Candidate struct {
	Provider llm.Provider `json:"provider"`
	Model    string       `json:"model"`
}

func (c Candidate) String() string {
	return string(c.Provider) + "/" + c.Model
}

// RouteDecision is the selected primary plus its ordered fallbacks.
// FallbackChain holds no duplicate pairs and never repeats the primary.
type RouteDecision struct {
	Provider        llm.Provider `json:"provider"`
	Model           string       `json:"model"`
	EstimatedCost   float64      `json:"estimated_cost"`
	ComplexityScore float64      `json:"complexity_score"`
	Reasoning       string       `json:"reasoning"`
	FallbackChain   []Candidate  `json:"fallback_chain"`
}

// Primary returns the decision's first candidate
func (d RouteDecision) Primary() Candidate {
	return Candidate{Provider: d.Provider, Model: d.Model}
}

// Candidates returns the primary followed by the fallback chain
func (d RouteDecision) Candidates() []Candidate {
	out := make([]Candidate, 0, len(d.FallbackChain)+1)
	out = append(out, d.Primary())
	return append(out, d.FallbackChain...)
}

// RoutingResult is the outcome of one routed request. ProvidersAttempted is
// always a prefix of the decision's candidates, and ActualCost is zero
// unless the response succeeded.
type RoutingResult struct {
	RequestID          string           `json:"request_id"`
	Route              RouteDecision    `json:"route"`
	Response           llm.ChatResponse `json:"response"`
	ActualCost         float64          `json:"actual_cost"`
	ProvidersAttempted []string         `json:"providers_attempted"`
	TotalTimeMs        int64            `json:"total_time_ms"`
}

// Err returns nil when the response succeeded. Otherwise it wraps
// ErrNoEligibleProvider when nothing was attempted, or ErrAllProvidersExhausted
// together with the last adapter failure.
func (r *RoutingResult) Err() error {
	if r.Response.Success {
		return nil
	}
	if len(r.ProvidersAttempted) == 0 {
		if r.Response.ErrorKind == llm.KindCancelled {
			return r.Response.Err()
		}
		return fmt.Errorf("%w: %s", ErrNoEligibleProvider, r.Response.Error)
	}
	return fmt.Errorf("%w: %w", ErrAllProvidersExhausted, r.Response.Err())
}

// CostEstimate is the result of selection without execution
type CostEstimate struct {
	EstimatedCost   float64      `json:"estimated_cost"`
	Provider        llm.Provider `json:"provider"`
	Model           string       `json:"model"`
	ComplexityScore float64      `json:"complexity_score"`
	Reasoning       string       `json:"reasoning"`
}
