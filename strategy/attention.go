package strategy

// AttentionInputs are authoritative facts produced upstream. No inference
// happens here.
type AttentionInputs struct {
	MeaningfullyHigher      bool `json:"attentionMeaningfullyHigher"`
	StabilityMeetsMinimum   bool `json:"stabilityMeetsMinimum"`
	ConfidenceSufficient    bool `json:"confidenceSufficient"`
	DifferencePersists      bool `json:"differencePersistsOverTime"`
	SwitchingCostsJustified bool `json:"switchingCostsJustified"`
}

type AttentionOutcome string

const (
	TargetMarketBetter AttentionOutcome = "TARGET_MARKET_BETTER"
	NoRotation         AttentionOutcome = "NO_ROTATION"
)

type AttentionReason struct {
	Code      string `json:"code"`
	Satisfied bool   `json:"satisfied"`
}

type AttentionDecision struct {
	Outcome AttentionOutcome  `json:"type"`
	Reasons []AttentionReason `json:"reasons"`
}

// Better reports whether the target market is worth entering or rotating to.
func (d AttentionDecision) Better() bool {
	return d.Outcome == TargetMarketBetter
}

// DecideAttention grants rotation only when all five facts hold.
func DecideAttention(in AttentionInputs) AttentionDecision {
	reasons := []AttentionReason{
		{Code: "ATTENTION_MEANINGFULLY_HIGHER", Satisfied: in.MeaningfullyHigher},
		{Code: "STABILITY_MEETS_MINIMUM", Satisfied: in.StabilityMeetsMinimum},
		{Code: "CONFIDENCE_SUFFICIENT", Satisfied: in.ConfidenceSufficient},
		{Code: "DIFFERENCE_PERSISTS_OVER_TIME", Satisfied: in.DifferencePersists},
		{Code: "SWITCHING_COSTS_JUSTIFIED", Satisfied: in.SwitchingCostsJustified},
	}
	out := TargetMarketBetter
	for _, r := range reasons {
		if !r.Satisfied {
			out = NoRotation
			break
		}
	}
	return AttentionDecision{Outcome: out, Reasons: reasons}
}

// AllAttention returns inputs with every fact set to v.
func AllAttention(v bool) AttentionInputs {
	return AttentionInputs{v, v, v, v, v}
}
