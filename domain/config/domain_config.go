package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Community records
	MaxFeedbackLength    int
	MaxDescriptionLength int
	MaxAppNameLength     int
	MinUsernameLength    int
	MaxUsernameLength    int
	MaxTargetsPerSubmit  int

	// Duplicate check
	DuplicateCheckDebounce time.Duration

	// Scanning
	ScanWorkers        int
	TargetCacheTTL     time.Duration
	MaxPackagesPerScan int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxFeedbackLength:    500,
		MaxDescriptionLength: 2000,
		MaxAppNameLength:     100,
		MinUsernameLength:    3,
		MaxUsernameLength:    30,
		MaxTargetsPerSubmit:  20,

		DuplicateCheckDebounce: 500 * time.Millisecond,

		ScanWorkers:        8,
		TargetCacheTTL:     10 * time.Minute,
		MaxPackagesPerScan: 2000,
	}
}
