package entities

// VotePolicy is external decision configuration applied, not defined, by the
// engine. MajorityBasis selects the denominator for the approval ratio.
type VotePolicy struct {
	PolicyID          string
	Name              string
	MajorityThreshold float64
	MajorityBasis     MajorityBasis
}

type MajorityBasis string

const (
	// BasisExpressed divides by for+against weight.
	BasisExpressed MajorityBasis = "expressed"
	// BasisPresent divides by the total cast weight including abstentions.
	BasisPresent MajorityBasis = "present"
)

// QuorumPolicy is external quorum configuration.
type QuorumPolicy struct {
	PolicyID  string
	Name      string
	Threshold float64
}
