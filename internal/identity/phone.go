package identity

import "strings"

// PhonePlan describes the local mobile numbering plan the rules target.
type PhonePlan struct {
	CountryCode       string   // "54"
	MobilePrefix      string   // "9", inserted after the country code for mobiles
	TrunkPrefix       string   // "0", dialled before the area code domestically
	LocalMobilePrefix string   // "15", legacy mobile marker after the area code
	AreaCodes         []string // area codes (without trunk) whose numbers are recognized
	SubscriberDigits  int      // area code + local number length, 10
}

// DefaultPhonePlan is the Argentine mobile plan for Buenos Aires.
func DefaultPhonePlan() PhonePlan {
	return PhonePlan{
		CountryCode:       "54",
		MobilePrefix:      "9",
		TrunkPrefix:       "0",
		LocalMobilePrefix: "15",
		AreaCodes:         []string{"11"},
		SubscriberDigits:  10,
	}
}

// PhoneRule rewrites the digit projection of a phone when it applies.
type PhoneRule struct {
	Name  string
	Apply func(p PhonePlan, digits, raw string) (string, bool)
}

// PhoneRules returns the ordered rule list. Order matters: several shapes share
// a length and only the first applicable rule may fire.
func PhoneRules() []PhoneRule {
	return []PhoneRule{
		{Name: "trunk+subscriber", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			if len(d) == p.SubscriberDigits+len(p.TrunkPrefix) && strings.HasPrefix(d, p.TrunkPrefix) && p.hasArea(d[len(p.TrunkPrefix):]) {
				return "+" + p.CountryCode + p.MobilePrefix + d[len(p.TrunkPrefix):], true
			}
			return "", false
		}},
		{Name: "subscriber", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			if len(d) == p.SubscriberDigits && p.hasArea(d) {
				return "+" + p.CountryCode + p.MobilePrefix + d, true
			}
			return "", false
		}},
		{Name: "mobile+subscriber", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			if len(d) == p.SubscriberDigits+len(p.MobilePrefix) && strings.HasPrefix(d, p.MobilePrefix) && p.hasArea(d[len(p.MobilePrefix):]) {
				return "+" + p.CountryCode + d, true
			}
			return "", false
		}},
		{Name: "trunk+area+15", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			if !strings.HasPrefix(d, p.TrunkPrefix) {
				return "", false
			}
			return p.stripLocalMobile(d[len(p.TrunkPrefix):])
		}},
		{Name: "area+15", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			return p.stripLocalMobile(d)
		}},
		{Name: "country+trunk+subscriber", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			prefix := p.CountryCode + p.TrunkPrefix
			if len(d) == len(prefix)+p.SubscriberDigits && strings.HasPrefix(d, prefix) {
				return "+" + p.CountryCode + p.MobilePrefix + d[len(prefix):], true
			}
			return "", false
		}},
		{Name: "country+subscriber", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			if len(d) == len(p.CountryCode)+p.SubscriberDigits && strings.HasPrefix(d, p.CountryCode) &&
				!strings.HasPrefix(d, p.CountryCode+p.MobilePrefix) {
				return "+" + p.CountryCode + p.MobilePrefix + d[len(p.CountryCode):], true
			}
			return "", false
		}},
		{Name: "country+mobile", Apply: func(p PhonePlan, d, _ string) (string, bool) {
			if strings.HasPrefix(d, p.CountryCode+p.MobilePrefix) {
				return "+" + d, true
			}
			return "", false
		}},
		{Name: "international", Apply: func(_ PhonePlan, d, raw string) (string, bool) {
			if strings.HasPrefix(strings.TrimSpace(raw), "+") {
				return "+" + d, true
			}
			return "", false
		}},
	}
}

// PhoneNormalizer applies PhoneRules under a plan.
type PhoneNormalizer struct {
	plan  PhonePlan
	rules []PhoneRule
}

// NewPhoneNormalizer builds a normalizer; zero-valued plan fields take defaults.
func NewPhoneNormalizer(plan PhonePlan) *PhoneNormalizer {
	def := DefaultPhonePlan()
	if plan.CountryCode == "" {
		plan.CountryCode = def.CountryCode
	}
	if plan.MobilePrefix == "" {
		plan.MobilePrefix = def.MobilePrefix
	}
	if plan.TrunkPrefix == "" {
		plan.TrunkPrefix = def.TrunkPrefix
	}
	if plan.LocalMobilePrefix == "" {
		plan.LocalMobilePrefix = def.LocalMobilePrefix
	}
	if len(plan.AreaCodes) == 0 {
		plan.AreaCodes = def.AreaCodes
	}
	if plan.SubscriberDigits <= 0 {
		plan.SubscriberDigits = def.SubscriberDigits
	}
	return &PhoneNormalizer{plan: plan, rules: PhoneRules()}
}

// Normalize never fails. Unrecognized shapes fall through to "+" + digits,
// which is best effort only. Input without any digit yields "".
func (n *PhoneNormalizer) Normalize(raw string) string {
	out, _ := n.NormalizeWithRule(raw)
	return out
}

// NormalizeWithRule also reports which rule fired ("fallback" when none did).
func (n *PhoneNormalizer) NormalizeWithRule(raw string) (string, string) {
	digits := Digits(raw)
	if digits == "" {
		return "", "empty"
	}
	for _, rule := range n.rules {
		if out, ok := rule.Apply(n.plan, digits, raw); ok {
			return out, rule.Name
		}
	}
	return "+" + digits, "fallback"
}

// Digits projects s onto its ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (p PhonePlan) hasArea(d string) bool {
	for _, a := range p.AreaCodes {
		if a != "" && strings.HasPrefix(d, a) {
			return true
		}
	}
	return false
}

// stripLocalMobile handles area + "15" + local number.
func (p PhonePlan) stripLocalMobile(d string) (string, bool) {
	for _, a := range p.AreaCodes {
		if a == "" || !strings.HasPrefix(d, a) {
			continue
		}
		rest := d[len(a):]
		if len(d) != p.SubscriberDigits+len(p.LocalMobilePrefix) || !strings.HasPrefix(rest, p.LocalMobilePrefix) {
			continue
		}
		return "+" + p.CountryCode + p.MobilePrefix + a + rest[len(p.LocalMobilePrefix):], true
	}
	return "", false
}
