package character

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rosterFile is the on-disk shape of the character roster.
type rosterFile struct {
	Characters []Profile `yaml:"characters"`
}

// LoadRoster reads the YAML roster at path and returns the normalized
// profiles. Every profile must carry a non-empty id and name, and ids must
// be unique within the file.
func LoadRoster(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("character: read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes a YAML roster document. Split out from LoadRoster so
// callers can load rosters from embedded or remote sources.
func ParseRoster(data []byte) ([]Profile, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("character: parse roster: %w", err)
	}
	if len(file.Characters) == 0 {
		return nil, fmt.Errorf("character: roster declares no characters")
	}

	seen := make(map[string]struct{}, len(file.Characters))
	profiles := make([]Profile, 0, len(file.Characters))
	for i, p := range file.Characters {
		if p.ID == "" {
			return nil, fmt.Errorf("character: roster entry %d has no id", i)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("character: roster entry %q has no name", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("character: duplicate character id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Model != nil {
			validated := p.Model.Validated()
			p.Model = &validated
		}
		profiles = append(profiles, p.Normalize())
	}
	return profiles, nil
}
