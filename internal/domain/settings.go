package domain

import (
	"strconv"
	"strings"
)

// Setting keys
const (
	SettingPaymentMode     = "payment_mode"
	SettingTrialPeriodDays = "trial_period_days"
)

// PaymentMode selects the gateway integration
type PaymentMode string

const (
	PaymentSandbox PaymentMode = "sandbox"
	PaymentLive    PaymentMode = "live"
)

// SystemSettings are the externally configurable switches read per request
type SystemSettings struct {
	PaymentMode     PaymentMode `json:"payment_mode"`
	TrialPeriodDays int         `json:"trial_period_days"`
}

// IsSandbox reports whether the sandbox gateway is selected
func (s SystemSettings) IsSandbox() bool {
	return s.PaymentMode != PaymentLive
}

// ApplySettings overlays stored key/value settings on defaults, ignoring malformed values
func ApplySettings(defaults SystemSettings, stored map[string]string) SystemSettings {
	out := defaults
	if v, ok := stored[SettingPaymentMode]; ok {
		switch mode := PaymentMode(strings.ToLower(strings.TrimSpace(v))); mode {
		case PaymentSandbox, PaymentLive:
			out.PaymentMode = mode
		}
	}
	if v, ok := stored[SettingTrialPeriodDays]; ok {
		if days, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && days >= 0 {
			out.TrialPeriodDays = days
		}
	}
	return out
}
