package safety

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed rules.toml
var rulesTOML []byte

// RuleSet holds the allow/deny vocabularies the classifier checks a script
// against. The sets ship embedded in the binary so classification never
// depends on files on disk.
type RuleSet struct {
	Read struct {
		Cmdlets []string `toml:"cmdlets"`
	} `toml:"read"`
	Write struct {
		Cmdlets  []string `toml:"cmdlets"`
		Keywords []string `toml:"keywords"`
	} `toml:"write"`
	Deny struct {
		Patterns []string `toml:"patterns"`
		Keywords []string `toml:"keywords"`
	} `toml:"deny"`

	readSet  map[string]bool
	writeSet map[string]bool
}

// LoadRules parses a rule manifest from TOML.
func LoadRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := toml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("safety: parse rules: %w", err)
	}
	if len(rs.Read.Cmdlets) == 0 {
		return nil, fmt.Errorf("safety: rules define no read cmdlets")
	}
	if len(rs.Deny.Patterns) == 0 && len(rs.Deny.Keywords) == 0 {
		return nil, fmt.Errorf("safety: rules define no denylist")
	}
	rs.readSet = make(map[string]bool, len(rs.Read.Cmdlets))
	for _, c := range rs.Read.Cmdlets {
		rs.readSet[strings.ToLower(c)] = true
	}
	rs.writeSet = make(map[string]bool, len(rs.Write.Cmdlets))
	for _, c := range rs.Write.Cmdlets {
		rs.writeSet[strings.ToLower(c)] = true
	}
	return &rs, nil
}

// DefaultRules returns the embedded rule manifest. The embedded manifest is
// validated by tests, so a parse failure here is a build defect.
func DefaultRules() *RuleSet {
	rs, err := LoadRules(rulesTOML)
	if err != nil {
		panic(err)
	}
	return rs
}

// IsReadCmdlet reports whether name (case-insensitive) is an allowlisted
// read-only cmdlet.
func (rs *RuleSet) IsReadCmdlet(name string) bool {
	return rs.readSet[strings.ToLower(name)]
}

// IsWriteCmdlet reports whether name (case-insensitive) is a known mutating
// cmdlet.
func (rs *RuleSet) IsWriteCmdlet(name string) bool {
	return rs.writeSet[strings.ToLower(name)]
}
