package market

import "fmt"

// ReasonCode is the closed set of codes recorded on decisions and audit facts.
type ReasonCode string

const (
	ReasonUnknown               ReasonCode = "UNKNOWN"
	ReasonAttentionSuperior     ReasonCode = "ATTENTION_SUPERIOR"
	ReasonAttentionInsufficient ReasonCode = "ATTENTION_INSUFFICIENT"
	ReasonStabilityInsufficient ReasonCode = "STABILITY_INSUFFICIENT"
	ReasonHoldTimeActive        ReasonCode = "HOLD_TIME_ACTIVE"
	ReasonCooldownActive        ReasonCode = "COOLDOWN_ACTIVE"
	ReasonSafetyTriggered       ReasonCode = "SAFETY_TRIGGERED"
	ReasonPreflightBlocked      ReasonCode = "PREFLIGHT_BLOCKED"
)

// ReasonCodes lists every code in declaration order.
var ReasonCodes = []ReasonCode{
	ReasonUnknown,
	ReasonAttentionSuperior,
	ReasonAttentionInsufficient,
	ReasonStabilityInsufficient,
	ReasonHoldTimeActive,
	ReasonCooldownActive,
	ReasonSafetyTriggered,
	ReasonPreflightBlocked,
}

func ParseReasonCode(s string) (ReasonCode, error) {
	for _, c := range ReasonCodes {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: reason code %q", ErrInvalidValue, s)
}

func (c *ReasonCode) UnmarshalText(b []byte) error {
	v, err := ParseReasonCode(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
