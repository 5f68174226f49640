package app

import "wellbeing-checkin-service/internal/domain"

// EvaluateCompletion derives the final score, risk level and recommendation
// from the answered entries. The policy reads only the order-2 (feeling) scale
// value; the order-3 barrier answer is recorded but does not influence the
// result. Later branches override earlier ones.
func EvaluateCompletion(entries []domain.Entry) domain.CompletionResult {
	result := domain.CompletionResult{
		Score:          80,
		Risk:           domain.RiskStable,
		Recommendation: "keep up this performance",
	}

	for _, entry := range entries {
		if entry.Order != 2 || entry.AnswerValue == nil {
			continue
		}
		feeling := *entry.AnswerValue
		if feeling > 3 {
			result = domain.CompletionResult{
				Score:          60,
				Risk:           domain.RiskTired,
				Recommendation: "try to take a rest",
			}
		}
		if feeling >= 5 {
			result = domain.CompletionResult{
				Score:          40,
				Risk:           domain.RiskOfBurnout,
				Recommendation: "consider speaking with your manager",
			}
		}
	}
	return result
}
