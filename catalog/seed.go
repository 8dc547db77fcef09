package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is the on-disk shape of a catalog seed file.
type Seed struct {
	Reasons          []Entry `yaml:"reasons"`
	Statuses         []Entry `yaml:"statuses"`
	EventTypes       []Entry `yaml:"event_types"`
	TransactionTypes []Entry `yaml:"transaction_types"`
}

// Entries returns the seed grouped by kind.
func (s Seed) Entries() map[Kind][]Entry {
	return map[Kind][]Entry{
		KindReason:          s.Reasons,
		KindStatus:          s.Statuses,
		KindEventType:       s.EventTypes,
		KindTransactionType: s.TransactionTypes,
	}
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("catalog: read seed: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("catalog: parse seed: %w", err)
	}
	for kind, entries := range s.Entries() {
		seen := make(map[string]struct{}, len(entries))
		for i, e := range entries {
			code := strings.TrimSpace(e.Code)
			if code == "" {
				return Seed{}, fmt.Errorf("catalog: %s entry %d has empty code", kind, i)
			}
			if code != strings.ToUpper(code) {
				return Seed{}, fmt.Errorf("catalog: %s code %q must be upper case", kind, code)
			}
			if _, dup := seen[code]; dup {
				return Seed{}, fmt.Errorf("catalog: duplicate %s code %q", kind, code)
			}
			seen[code] = struct{}{}
			entries[i].Code = code
		}
	}
	return s, nil
}

// Upserter persists entries for one kind.
type Upserter interface {
	Upsert(ctx context.Context, kind Kind, entries []Entry) (int, error)
}

// Apply writes every non-empty section of the seed and returns rows touched per kind.
func Apply(ctx context.Context, dst Upserter, s Seed) (map[Kind]int, error) {
	grouped := s.Entries()
	out := make(map[Kind]int, len(Kinds))
	for _, kind := range Kinds {
		entries := grouped[kind]
		if len(entries) == 0 {
			continue
		}
		n, err := dst.Upsert(ctx, kind, entries)
		if err != nil {
			return out, err
		}
		out[kind] = n
	}
	return out, nil
}
