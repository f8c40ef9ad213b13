package enums

import "fmt"

// RegistrationType categorizes who a registration was made for.
type RegistrationType string

const (
	RegistrationTypeIndividual   RegistrationType = "individual"
	RegistrationTypeLodge        RegistrationType = "lodge"
	RegistrationTypeGrandLodge   RegistrationType = "grandLodge"
	RegistrationTypeMasonicOrder RegistrationType = "masonicOrder"
)

var validRegistrationTypes = []RegistrationType{
	RegistrationTypeIndividual,
	RegistrationTypeLodge,
	RegistrationTypeGrandLodge,
	RegistrationTypeMasonicOrder,
}

// String implements fmt.Stringer.
func (r RegistrationType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RegistrationType.
func (r RegistrationType) IsValid() bool {
	for _, candidate := range validRegistrationTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsIndividual reports whether tickets on this registration belong to
// individual attendees rather than an organisation.
func (r RegistrationType) IsIndividual() bool {
	return r == RegistrationTypeIndividual
}

// ParseRegistrationType converts raw input into a RegistrationType. The legacy
// plural spelling "individuals" that appears in historical registration data
// normalizes to the singular form.
func ParseRegistrationType(value string) (RegistrationType, error) {
	if value == "individuals" {
		return RegistrationTypeIndividual, nil
	}
	for _, candidate := range validRegistrationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid registration type %q", value)
}
