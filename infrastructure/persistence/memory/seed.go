package memory

import (
	"fmt"
	"os"

	"librefind/domain/core/entities"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML layout of a catalog fixture file.
type Seed struct {
	Targets      []SeedTarget      `yaml:"targets"`
	Alternatives []SeedAlternative `yaml:"alternatives"`
}

type SeedTarget struct {
	PackageName  string   `yaml:"packageName"`
	Name         string   `yaml:"name"`
	Category     string   `yaml:"category"`
	Alternatives []string `yaml:"alternatives"`
}

type SeedAlternative struct {
	ID          string   `yaml:"id"`
	PackageName string   `yaml:"packageName"`
	Name        string   `yaml:"name"`
	License     string   `yaml:"license"`
	RepoURL     string   `yaml:"repoUrl"`
	FdroidID    string   `yaml:"fdroidId"`
	IconURL     string   `yaml:"iconUrl"`
	Description string   `yaml:"description"`
	Website     string   `yaml:"website"`
	Features    []string `yaml:"features"`
	Pros        []string `yaml:"pros"`
	Cons        []string `yaml:"cons"`
	RatingAvg   float64  `yaml:"ratingAvg"`
	RatingCount int      `yaml:"ratingCount"`
}

// ParseSeed decodes a catalog fixture.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	for i, alt := range seed.Alternatives {
		if alt.ID == "" {
			return nil, fmt.Errorf("catalog seed: alternative %d has no id", i)
		}
	}
	return &seed, nil
}

// LoadSeedFile reads a fixture from disk and applies it to s.
func (s *CatalogStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog seed: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return err
	}
	s.ApplySeed(seed)
	return nil
}

// ApplySeed inserts every target and alternative in seed.
func (s *CatalogStore) ApplySeed(seed *Seed) {
	for _, t := range seed.Targets {
		s.PutTarget(entities.ProprietaryTarget{
			PackageName:  t.PackageName,
			Name:         t.Name,
			Category:     t.Category,
			Alternatives: t.Alternatives,
		})
	}
	for _, a := range seed.Alternatives {
		s.PutAlternative(entities.Alternative{
			ID:          a.ID,
			PackageName: a.PackageName,
			Name:        a.Name,
			License:     a.License,
			RepoURL:     a.RepoURL,
			FdroidID:    a.FdroidID,
			IconURL:     a.IconURL,
			Description: a.Description,
			Website:     a.Website,
			Features:    a.Features,
			Pros:        a.Pros,
			Cons:        a.Cons,
			RatingAvg:   a.RatingAvg,
			RatingCount: a.RatingCount,
		})
	}
}
