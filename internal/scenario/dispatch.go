package scenario

import (
	"log/slog"
	"sort"

	"chatwatch/internal/domain"
)

// Dispatch resolves which scenario governs a chat. Many chat identifiers map
// to one scenario; a chat no scenario claims is unmonitorable and must be
// skipped by the caller, never processed under a default.
type Dispatch struct {
	byGroup map[string]*domain.Scenario
	byName  map[string]*domain.Scenario
}

// NewDispatch builds the group-to-scenario mapping. When two scenarios claim
// the same group the first loaded wins and the conflict is logged.
func NewDispatch(scenarios []domain.Scenario, logger *slog.Logger) *Dispatch {
	d := &Dispatch{
		byGroup: make(map[string]*domain.Scenario),
		byName:  make(map[string]*domain.Scenario),
	}
	for i := range scenarios {
		sc := &scenarios[i]
		d.byName[sc.Name] = sc
		for _, g := range sc.Groups {
			if prev, taken := d.byGroup[g]; taken {
				logger.Warn("group claimed by two scenarios, keeping first",
					"group", g, "kept", prev.Name, "ignored", sc.Name)
				continue
			}
			d.byGroup[g] = sc
		}
	}
	return d
}

// ScenarioFor returns the scenario governing chatID, or ok=false when no
// scenario claims it.
func (d *Dispatch) ScenarioFor(chatID string) (*domain.Scenario, bool) {
	sc, ok := d.byGroup[chatID]
	return sc, ok
}

// ByName returns a scenario by definition name.
func (d *Dispatch) ByName(name string) (*domain.Scenario, bool) {
	sc, ok := d.byName[name]
	return sc, ok
}

// Groups returns every mapped chat identifier, sorted for stable iteration.
func (d *Dispatch) Groups() []string {
	groups := make([]string, 0, len(d.byGroup))
	for g := range d.byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// GroupsFor returns the mapped chats governed by the named scenario, sorted.
func (d *Dispatch) GroupsFor(name string) []string {
	var groups []string
	for g, sc := range d.byGroup {
		if sc.Name == name {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)
	return groups
}

// Scenarios returns all known scenarios sorted by name.
func (d *Dispatch) Scenarios() []*domain.Scenario {
	out := make([]*domain.Scenario, 0, len(d.byName))
	for _, sc := range d.byName {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
