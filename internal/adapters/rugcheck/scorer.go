// Package rugcheck scores tokens with the public rugcheck.xyz report summary.
package rugcheck

import (
	"context"
	"fmt"
	"strings"

	"solTradeBot/internal/adapters/httpjson"
	"solTradeBot/internal/ports"
)

// Scorer implements ports.RiskScorer.
type Scorer struct {
	baseURL string
	client  *httpjson.Client
	logger  ports.Logger
}

func NewScorer(baseURL string, client *httpjson.Client, logger ports.Logger) (*Scorer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk scorer: %w", ports.ErrConfigurationError)
	}
	return &Scorer{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}, nil
}

type summary struct {
	ScoreNormalised *int `json:"score_normalised"`
	Risks           []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Level       string `json:"level"`
	} `json:"risks"`
}

// Score returns a 0..100 risk level and the report's risk names as warnings.
func (s *Scorer) Score(ctx context.Context, token string) (*ports.RiskAssessment, error) {
	op := "Rugcheck.Score"

	var resp summary
	if err := s.client.Get(ctx, fmt.Sprintf("%s/v1/tokens/%s/report/summary", s.baseURL, token), &resp); err != nil {
		s.logger.Warn(ctx, op+": report request failed", map[string]interface{}{"token": token, "error": err.Error()})
		return nil, fmt.Errorf("%s %s: %w: %w", op, token, ports.ErrRiskUnavailable, err)
	}
	if resp.ScoreNormalised == nil {
		return nil, fmt.Errorf("%s %s: missing score: %w: %w", op, token, ports.ErrRiskUnavailable, ports.ErrInvalidResponse)
	}

	level := *resp.ScoreNormalised
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	warnings := make([]string, 0, len(resp.Risks))
	for _, r := range resp.Risks {
		if r.Level == "danger" {
			warnings = append(warnings, "DANGER: "+r.Name)
			continue
		}
		warnings = append(warnings, r.Name)
	}

	s.logger.Debug(ctx, op+": token scored", map[string]interface{}{"token": token, "riskLevel": level, "warnings": len(warnings)})
	return &ports.RiskAssessment{RiskLevel: level, Warnings: warnings}, nil
}
