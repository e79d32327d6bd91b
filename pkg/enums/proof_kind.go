package enums

import "fmt"

// ProofKind names the evidence captured when a stop completes.
type ProofKind string

const (
	ProofKindSignature ProofKind = "signature"
	ProofKindPhoto     ProofKind = "photo"
	ProofKindPIN       ProofKind = "pin"
	ProofKindNote      ProofKind = "note"
)

var validProofKinds = []ProofKind{
	ProofKindSignature,
	ProofKindPhoto,
	ProofKindPIN,
	ProofKindNote,
}

// String implements fmt.Stringer.
func (v ProofKind) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ProofKind.
func (v ProofKind) IsValid() bool {
	for _, candidate := range validProofKinds {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseProofKind converts raw input into a ProofKind.
func ParseProofKind(value string) (ProofKind, error) {
	for _, candidate := range validProofKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proof kind %q", value)
}
