package markers

import (
	"strings"
)

// Kind labels an event by its title.
type Kind int

const (
	KindUnclassified Kind = iota
	KindAvailability
	KindBooking
	KindPayment
)

// Kinds lists every classification in a stable order.
func Kinds() []Kind {
	return []Kind{KindAvailability, KindBooking, KindPayment, KindUnclassified}
}

func (k Kind) String() string {
	switch k {
	case KindAvailability:
		return "availability"
	case KindBooking:
		return "booking"
	case KindPayment:
		return "payment"
	default:
		return "unclassified"
	}
}

// MarshalText renders the kind as its label.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParsedIdentity is the raw name/phone pair carried by a booking title.
type ParsedIdentity struct {
	RawName  string
	RawPhone string
}

// Classifier applies a compiled rule set. It is safe for concurrent use.
type Classifier struct {
	rules    Rules
	compiled *compiled
}

// NewClassifier compiles rules.
func NewClassifier(rules Rules) (*Classifier, error) {
	c, err := compile(rules)
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: rules, compiled: c}, nil
}

// MustClassifier is NewClassifier that panics on invalid rules.
func MustClassifier(rules Rules) *Classifier {
	c, err := NewClassifier(rules)
	if err != nil {
		panic(err)
	}
	return c
}

// RuleVersion reports the version of the active rule set.
func (c *Classifier) RuleVersion() string {
	return c.rules.Version
}

// Classify labels a title. First match wins: availability, booking, payment.
func (c *Classifier) Classify(title string) Kind {
	normalized := collapse(title)
	if normalized == "" {
		return KindUnclassified
	}
	lower := strings.ToLower(normalized)

	for _, tok := range c.compiled.availability {
		if strings.HasPrefix(lower, tok) {
			return KindAvailability
		}
	}
	if c.compiled.booking.MatchString(normalized) {
		return KindBooking
	}
	for _, tok := range c.compiled.payment {
		if strings.Contains(lower, tok) {
			return KindPayment
		}
	}
	return KindUnclassified
}

// Parse extracts the identity from a booking title using the strict anchored
// pattern. Titles that merely look like bookings are rejected.
func (c *Classifier) Parse(title string) (ParsedIdentity, bool) {
	m := c.compiled.identity.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ParsedIdentity{}, false
	}
	name := strings.TrimSpace(m[1])
	phone := strings.TrimSpace(m[2])
	if name == "" || phone == "" {
		return ParsedIdentity{}, false
	}
	return ParsedIdentity{RawName: name, RawPhone: phone}, true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
