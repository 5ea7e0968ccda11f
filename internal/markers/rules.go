// Package markers classifies calendar event titles and extracts the patient
// identity encoded in booking markers.
//
// The title grammar is a versioned rule set so changes to tokens or patterns
// can be tested in isolation from the rest of the pipeline.
package markers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rules configures the title grammar.
type Rules struct {
	Version            string
	AvailabilityTokens []string // title equals or starts with one of these
	NameTokens         []string // tag preceding the patient name
	PhoneTokens        []string // tag preceding the patient phone
	PaymentTokens      []string // title contains one of these
}

// DefaultRules returns rule set v1.
func DefaultRules() Rules {
	return Rules{
		Version:            "v1",
		AvailabilityTokens: []string{"Ocupar"},
		NameTokens:         []string{"N"},
		PhoneTokens:        []string{"T"},
		PaymentTokens:      []string{"pago"},
	}
}

// Example is a documented title and the outcome rule set v1 produces for it.
type Example struct {
	Title string
	Kind  Kind
	Name  string
	Phone string
}

// Examples lists the reference titles for DefaultRules.
func Examples() []Example {
	return []Example{
		{Title: "Ocupar", Kind: KindAvailability},
		{Title: "  ocupar  turno mañana", Kind: KindAvailability},
		{Title: "N: Juan Pérez T: 11 4444 5555", Kind: KindBooking, Name: "Juan Pérez", Phone: "11 4444 5555"},
		{Title: "n : ana gómez   t : +5491155556666", Kind: KindBooking, Name: "ana gómez", Phone: "+5491155556666"},
		{Title: "Control N: Luis T: 1144445555", Kind: KindBooking},
		{Title: "Pago seña Ana", Kind: KindPayment},
		{Title: "Turno de control", Kind: KindUnclassified},
		{Title: "", Kind: KindUnclassified},
	}
}

// Validate reports missing tokens.
func (r Rules) Validate() error {
	var missing []string
	if len(cleanTokens(r.AvailabilityTokens)) == 0 {
		missing = append(missing, "availability")
	}
	if len(cleanTokens(r.NameTokens)) == 0 {
		missing = append(missing, "name")
	}
	if len(cleanTokens(r.PhoneTokens)) == 0 {
		missing = append(missing, "phone")
	}
	if len(cleanTokens(r.PaymentTokens)) == 0 {
		missing = append(missing, "payment")
	}
	if len(missing) > 0 {
		return fmt.Errorf("markers: missing tokens: %s", strings.Join(missing, ", "))
	}
	return nil
}

type compiled struct {
	availability []string
	payment      []string
	booking      *regexp.Regexp
	identity     *regexp.Regexp
}

func compile(r Rules) (*compiled, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	names := alternation(r.NameTokens)
	phones := alternation(r.PhoneTokens)

	// Tokens must stand alone so "N" does not match inside "Nieto" nor "T" inside "GT".
	booking, err := regexp.Compile(`(?is)(?:^|[^\pL\pN])(?:` + names + `)\s*:\s*.*?(?:^|[^\pL\pN])(?:` + phones + `)\s*:`)
	if err != nil {
		return nil, fmt.Errorf("markers: compile booking pattern: %w", err)
	}
	identity, err := regexp.Compile(`(?is)^(?:` + names + `)\s*:\s*(.*?)\s*(?:` + phones + `)\s*:\s*(.*)$`)
	if err != nil {
		return nil, fmt.Errorf("markers: compile identity pattern: %w", err)
	}
	return &compiled{
		availability: lowerAll(cleanTokens(r.AvailabilityTokens)),
		payment:      lowerAll(cleanTokens(r.PaymentTokens)),
		booking:      booking,
		identity:     identity,
	}, nil
}

// alternation quotes tokens and orders them longest first so "Tel" wins over "T".
func alternation(tokens []string) string {
	cleaned := cleanTokens(tokens)
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	quoted := make([]string, len(cleaned))
	for i, tok := range cleaned {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	return strings.Join(quoted, "|")
}

func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func lowerAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = strings.ToLower(tok)
	}
	return out
}
