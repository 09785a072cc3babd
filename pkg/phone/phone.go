package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country prefix.
const DefaultRegion = "US"

// ErrEmpty is returned for a blank number.
var ErrEmpty = errors.New("phone number cannot be empty")

// Format is an output format for a parsed number.
type Format int

const (
	// FormatE164 is +15551234567.
	FormatE164 Format = iota
	// FormatInternational is +1 555-123-4567.
	FormatInternational
	// FormatNational is (555) 123-4567.
	FormatNational
)

// Result contains the result of phone number validation.
type Result struct {
	IsValid             bool   `json:"is_valid"`
	E164                string `json:"e164"`
	InternationalFormat string `json:"international_format"`
	NationalFormat      string `json:"national_format"`
	Region              string `json:"region"`
	Mobile              bool   `json:"mobile"`
}

// Normalizer parses numbers relative to a default region.
type Normalizer struct {
	region string
}

// NewNormalizer returns a Normalizer for region (ISO 3166-1 alpha-2).
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Region returns the default region.
func (n *Normalizer) Region() string {
	return n.region
}

// Parse validates a phone number and returns its formats.
func (n *Normalizer) Parse(number string) (*Result, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrEmpty
	}

	parsed, err := phonenumbers.Parse(number, n.region)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}

	numberType := phonenumbers.GetNumberType(parsed)
	return &Result{
		IsValid:             phonenumbers.IsValidNumber(parsed),
		E164:                phonenumbers.Format(parsed, phonenumbers.E164),
		InternationalFormat: phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
		NationalFormat:      phonenumbers.Format(parsed, phonenumbers.NATIONAL),
		Region:              phonenumbers.GetRegionCodeForNumber(parsed),
		Mobile:              numberType == phonenumbers.MOBILE || numberType == phonenumbers.FIXED_LINE_OR_MOBILE,
	}, nil
}

// IsValid reports whether number parses to a valid number.
func (n *Normalizer) IsValid(number string) bool {
	res, err := n.Parse(number)
	return err == nil && res.IsValid
}

// Normalize returns number in E.164, or an error if it is not valid.
func (n *Normalizer) Normalize(number string) (string, error) {
	return n.Format(number, FormatE164)
}

// Format renders a valid number in the requested format.
func (n *Normalizer) Format(number string, format Format) (string, error) {
	res, err := n.Parse(number)
	if err != nil {
		return "", err
	}
	if !res.IsValid {
		return "", fmt.Errorf("invalid phone number: %s", number)
	}
	switch format {
	case FormatInternational:
		return res.InternationalFormat, nil
	case FormatNational:
		return res.NationalFormat, nil
	default:
		return res.E164, nil
	}
}

// NormalizeOrKeep normalises a valid number and returns anything else unchanged.
func (n *Normalizer) NormalizeOrKeep(number string) string {
	if e164, err := n.Normalize(number); err == nil {
		return e164
	}
	return strings.TrimSpace(number)
}
