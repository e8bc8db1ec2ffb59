package patterns

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smythi93/islearn/pkg/language"
)

// DefaultGroup is the group name assigned to records without one.
const DefaultGroup = "default"

// ErrEmptyRepository is returned when a repository source contains no
// pattern records.
var ErrEmptyRepository = errors.New("patterns: repository source is empty")

//go:embed patterns.yaml
var builtinCatalog []byte

// Record is the persisted form of a single pattern: a unique name, an
// optional group, and the abstract constraint text.
type Record struct {
	Name       string `yaml:"name"`
	Group      string `yaml:"group,omitempty"`
	Constraint string `yaml:"constraint"`
}

// Repository is an in-memory, named and grouped collection of abstract
// formula templates.
type Repository struct {
	groups map[string]map[string]language.Formula
}

// Load parses a YAML pattern repository. The source must be a
// non-empty list of records; anything else is fatal at load time.
func Load(data []byte) (*Repository, error) {
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("patterns: malformed repository source: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyRepository
	}
	return FromRecords(records)
}

// LoadFile reads a repository from a YAML file.
func LoadFile(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patterns: reading repository file: %w", err)
	}
	return Load(data)
}

// BuiltIn returns the catalog embedded in the package.
func BuiltIn() (*Repository, error) {
	return Load(builtinCatalog)
}

// FromRecords builds a repository from parsed records.
func FromRecords(records []Record) (*Repository, error) {
	if len(records) == 0 {
		return nil, ErrEmptyRepository
	}
	repo := &Repository{groups: map[string]map[string]language.Formula{}}
	for _, record := range records {
		if record.Name == "" {
			return nil, fmt.Errorf("patterns: record without a name")
		}
		group := record.Group
		if group == "" {
			group = DefaultGroup
		}
		formula, err := ParseConstraint(record.Constraint)
		if err != nil {
			return nil, fmt.Errorf("patterns: pattern %q: %w", record.Name, err)
		}
		if _, exists := repo.groups[group][record.Name]; exists {
			return nil, fmt.Errorf("patterns: duplicate pattern name %q in group %q", record.Name, group)
		}
		if repo.groups[group] == nil {
			repo.groups[group] = map[string]language.Formula{}
		}
		repo.groups[group][record.Name] = formula
	}
	return repo, nil
}

// Get returns the patterns known under the given name: the whole group
// if a group matches, otherwise the single pattern of that name found
// in any group. An unknown name yields an empty slice.
func (r *Repository) Get(name string) []language.Formula {
	if group, ok := r.groups[name]; ok {
		return sortedFormulas(group)
	}
	for _, group := range r.sortedGroupNames() {
		if formula, ok := r.groups[group][name]; ok {
			return []language.Formula{formula}
		}
	}
	return nil
}

// Contains reports whether a pattern or group of the given name exists.
func (r *Repository) Contains(name string) bool {
	return len(r.Get(name)) > 0
}

// Len returns the total number of patterns across all groups.
func (r *Repository) Len() int {
	total := 0
	for _, group := range r.groups {
		total += len(group)
	}
	return total
}

// Groups returns the group names in sorted order.
func (r *Repository) Groups() []string {
	return r.sortedGroupNames()
}

// Names returns the pattern names of a group in sorted order.
func (r *Repository) Names(group string) []string {
	names := make([]string, 0, len(r.groups[group]))
	for name := range r.groups[group] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAll flattens the repository into a single pattern list, excluding
// every pattern or group named in but.
func (r *Repository) GetAll(but ...string) []language.Formula {
	excluded := map[string]bool{}
	for _, name := range but {
		for _, formula := range r.Get(name) {
			excluded[formula.String()] = true
		}
	}

	var result []language.Formula
	for _, group := range r.sortedGroupNames() {
		for _, formula := range sortedFormulas(r.groups[group]) {
			if !excluded[formula.String()] {
				result = append(result, formula)
			}
		}
	}
	return result
}

// String re-serializes the repository in its YAML form.
func (r *Repository) String() string {
	var sb strings.Builder
	for _, group := range r.sortedGroupNames() {
		names := make([]string, 0, len(r.groups[group]))
		for name := range r.groups[group] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "- name: %s\n", name)
			if group != DefaultGroup {
				fmt.Fprintf(&sb, "  group: %s\n", group)
			}
			fmt.Fprintf(&sb, "  constraint: |\n    %s\n", r.groups[group][name])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (r *Repository) sortedGroupNames() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedFormulas(group map[string]language.Formula) []language.Formula {
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]language.Formula, len(names))
	for i, name := range names {
		result[i] = group[name]
	}
	return result
}
