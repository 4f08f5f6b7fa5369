// Package lore filters and edits a game's shared lore.
package lore

import (
	"github.com/nstogner/eastworld-studio/pkg/content"
)

// Entry is a lore item together with its index in the full list.
type Entry struct {
	Index int
	Lore  content.Lore
}

// Filter returns the entries known by every selected agent. An empty
// selection matches everything.
func Filter(all []content.Lore, selected []string) []content.Lore {
	return pick(all, selected, knownByAll)
}

// FilterAny returns the entries known by at least one selected agent. An
// empty selection matches everything.
func FilterAny(all []content.Lore, selected []string) []content.Lore {
	return pick(all, selected, knownByAny)
}

// ForAgent returns the lore visible to a single agent.
func ForAgent(all []content.Lore, agentUUID string) []content.Lore {
	return Filter(all, []string{agentUUID})
}

// Visible is Filter keeping the index of each entry in all, so edits made
// through a filtered view address the right item.
func Visible(all []content.Lore, selected []string) []Entry {
	return visible(all, selected, knownByAll)
}

// VisibleAny is FilterAny keeping indexes.
func VisibleAny(all []content.Lore, selected []string) []Entry {
	return visible(all, selected, knownByAny)
}

func visible(all []content.Lore, selected []string, match func(content.Lore, []string) bool) []Entry {
	var out []Entry
	for i, l := range all {
		if match(l, selected) {
			out = append(out, Entry{Index: i, Lore: l})
		}
	}
	return out
}

func pick(all []content.Lore, selected []string, match func(content.Lore, []string) bool) []content.Lore {
	out := make([]content.Lore, 0, len(all))
	for _, l := range all {
		if match(l, selected) {
			out = append(out, l)
		}
	}
	return out
}

func knownByAll(l content.Lore, selected []string) bool {
	for _, id := range selected {
		if !l.IsKnownBy(id) {
			return false
		}
	}
	return true
}

func knownByAny(l content.Lore, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	for _, id := range selected {
		if l.IsKnownBy(id) {
			return true
		}
	}
	return false
}
