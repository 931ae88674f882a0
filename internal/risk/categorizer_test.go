package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zscore-fintech/zscore-engine/internal/config"
)

func TestCategorizeDecisionTable(t *testing.T) {
	c := New(config.Default().Risk)
	const graduation = 30.0

	tests := []struct {
		name      string
		pd        float64
		trust     float64
		obscurity float64
		want      Category
		eligible  bool
	}{
		{"obscure profile gates everything", 0.01, 0.95, 45, InsufficientData, false},
		{"obscurity exactly at threshold gates", 0.01, 0.95, 30, InsufficientData, false},
		{"low pd and high trust", 0.03, 0.85, 5, LowRisk, true},
		{"low pd but weak trust falls to medium", 0.03, 0.70, 5, MediumRisk, true},
		{"medium band", 0.10, 0.65, 5, MediumRisk, true},
		{"medium pd but weak trust falls to high", 0.10, 0.40, 5, HighRisk, false},
		{"high band", 0.25, 0.90, 5, HighRisk, false},
		{"boundary pd lands in next band", 0.05, 0.85, 5, MediumRisk, true},
		{"very high risk", 0.60, 0.90, 5, VeryHighRisk, false},
		{"pd at high boundary", 0.30, 0.90, 5, VeryHighRisk, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Categorize(tt.pd, tt.trust, tt.obscurity, graduation)
			assert.Equal(t, tt.want, d.Category)
			assert.Equal(t, tt.eligible, d.Eligible)
			assert.NotEmpty(t, d.Reason)
		})
	}
}
