package engine

// TrustLevel classifies a shared catalog source. Anything below
// TrustVerified produces a report warning; the merge still runs.
type TrustLevel string

const (
	TrustOfficial   TrustLevel = "official"
	TrustVerified   TrustLevel = "verified"
	TrustUnverified TrustLevel = "unverified"
)

// Verifier rates the trustworthiness of a catalog source.
type Verifier interface {
	Verify(source string) TrustLevel
}

// StaticVerifier reports a fixed trust level, typically the one declared in
// configuration.
type StaticVerifier struct {
	Level TrustLevel
}

func (v StaticVerifier) Verify(string) TrustLevel { return v.Level }
