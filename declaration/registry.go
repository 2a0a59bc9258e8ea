package declaration

import (
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// InvalidSuffix marks a name that more than one entity claimed.
const InvalidSuffix = "_INVALID_"

// Candidate is one named entity waiting for a place in the declaration.
type Candidate struct {
	Name   string
	Entity *Entity
	// Source is the resource path the entity was read from.
	Source string
	// Index is the catalog position of the descriptor that produced the
	// entity.
	Index int
	// Singleton marks entities of nameless resources. Singletons with the
	// same name and class are folded into one entity.
	Singleton bool
}

// NameConflict records a name claimed by several entities, and where each
// of them came from, in the order their suffixes were assigned.
type NameConflict struct {
	Name        string   `json:"name"`
	Occurrences []string `json:"occurrences"`
}

// Entities are resolved entities keyed by their final name.
type Entities = orderedmap.OrderedMap[string, *Entity]

// ReservedNames are keys of the tenant itself. An entity claiming one is
// treated as conflicting with the tenant.
var ReservedNames = map[string]bool{"class": true}

// Resolve places every candidate under a unique name. Candidates are
// ordered by catalog index, keeping the given order within an index. When
// a name is claimed more than once, or is reserved, every claimant, the
// first included, is renamed to <name>_INVALID_<n> where n counts
// occurrences from 1, and a NameConflict is recorded. A generated name
// never replaces a name read from the appliance; n skips past it instead.
// Candidates are never dropped.
func Resolve(candidates []Candidate) (*Entities, []NameConflict) {
	ordered := fold(candidates)

	counts := map[string]int{}
	for _, c := range ordered {
		counts[c.Name]++
	}
	conflicting := func(name string) bool {
		return counts[name] > 1 || ReservedNames[name]
	}

	taken := map[string]bool{}
	for name := range ReservedNames {
		taken[name] = true
	}
	for name := range counts {
		if !conflicting(name) {
			taken[name] = true
		}
	}

	out := orderedmap.New[string, *Entity]()
	next := map[string]int{}
	conflictAt := map[string]int{}
	conflicts := []NameConflict{}

	for _, c := range ordered {
		name := c.Name

		if conflicting(name) {
			name = invalidName(c.Name, next, taken)
			taken[name] = true

			i, ok := conflictAt[c.Name]
			if !ok {
				i = len(conflicts)
				conflictAt[c.Name] = i
				conflicts = append(conflicts, NameConflict{Name: c.Name})
			}
			conflicts[i].Occurrences = append(conflicts[i].Occurrences, c.Source)
		}

		out.Set(name, c.Entity)
	}

	return out, conflicts
}

// invalidName returns the next free suffixed name for base.
func invalidName(base string, next map[string]int, taken map[string]bool) string {
	for {
		next[base]++
		name := base + InvalidSuffix + strconv.Itoa(next[base])
		if !taken[name] {
			return name
		}
	}
}

// fold sorts candidates into catalog order and merges singletons sharing a
// name and class. Earlier candidates win on keys set by both.
func fold(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	type singletonKey struct {
		name  string
		class string
	}

	ordered := make([]Candidate, 0, len(sorted))
	folded := map[singletonKey]int{}

	for _, c := range sorted {
		if !c.Singleton {
			ordered = append(ordered, c)
			continue
		}

		key := singletonKey{name: c.Name, class: c.Entity.Class()}
		if i, ok := folded[key]; ok {
			ordered[i].Entity.Merge(c.Entity)
			continue
		}

		folded[key] = len(ordered)
		c.Entity = c.Entity.Clone()
		ordered = append(ordered, c)
	}

	return ordered
}

// ConflictNames returns the conflicting names in the order they were found.
func ConflictNames(conflicts []NameConflict) []string {
	names := make([]string, len(conflicts))
	for i, c := range conflicts {
		names[i] = c.Name
	}

	return names
}
