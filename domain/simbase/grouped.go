package simbase

import (
	"fmt"

	"timbersim/domain/core"
	"timbersim/domain/table"
	"timbersim/domain/transform"

	"golang.org/x/sync/errgroup"
)

// GroupedBasis maps grouping-key tuples to bases sharing one schema,
// preserving first-appearance order of the keys.
type GroupedBasis struct {
	GroupVars []core.VariableKey
	keys      []core.GroupKey
	bases     map[core.GroupKey]*Basis
}

// NewGrouped creates an empty grouped basis over the given grouping columns
func NewGrouped(groupVars []core.VariableKey) *GroupedBasis {
	return &GroupedBasis{
		GroupVars: append([]core.VariableKey(nil), groupVars...),
		bases:     make(map[core.GroupKey]*Basis),
	}
}

// Put registers a basis under a group key, enforcing key uniqueness and
// schema agreement with already registered members.
func (g *GroupedBasis) Put(key core.GroupKey, b *Basis) error {
	if _, exists := g.bases[key]; exists {
		return fmt.Errorf("duplicate group key %s", key)
	}
	if len(g.keys) > 0 {
		if !g.bases[g.keys[0]].SameSchema(b) {
			return core.NewGroupError(key, core.ErrIncompatibleSchema)
		}
	}
	g.keys = append(g.keys, key)
	g.bases[key] = b
	return nil
}

// Lookup returns the basis for a group key
func (g *GroupedBasis) Lookup(key core.GroupKey) (*Basis, bool) {
	b, ok := g.bases[key]
	return b, ok
}

// Keys returns the group keys in registration order
func (g *GroupedBasis) Keys() []core.GroupKey {
	out := make([]core.GroupKey, len(g.keys))
	copy(out, g.keys)
	return out
}

// Len returns the number of member bases
func (g *GroupedBasis) Len() int {
	return len(g.keys)
}

// Variables returns the shared variable schema, nil when empty
func (g *GroupedBasis) Variables() []core.VariableKey {
	if len(g.keys) == 0 {
		return nil
	}
	return g.bases[g.keys[0]].Variables
}

// Transforms returns the shared transform schema, nil when empty
func (g *GroupedBasis) Transforms() transform.Map {
	if len(g.keys) == 0 {
		return nil
	}
	return g.bases[g.keys[0]].Transforms
}

// BuildGrouped partitions the reference data by the distinct values of the
// grouping columns and builds one basis per partition. Partitions are
// independent pure computations, so they run concurrently; the first
// failure is reported with its group key attached.
func BuildGrouped(ref *table.Table, groupVars, variables []core.VariableKey, transforms transform.Map) (*GroupedBasis, error) {
	order, partitions, err := ref.Partition(groupVars)
	if err != nil {
		return nil, err
	}

	built := make([]*Basis, len(order))
	var eg errgroup.Group
	for i, key := range order {
		rows := partitions[key]
		eg.Go(func() error {
			b, err := Build(ref.Select(rows), variables, transforms)
			if err != nil {
				return core.NewGroupError(key, err)
			}
			built[i] = b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	grouped := NewGrouped(groupVars)
	for i, key := range order {
		if err := grouped.Put(key, built[i]); err != nil {
			return nil, err
		}
	}
	return grouped, nil
}

// GroupedPayload is the flat serializable form of a grouped basis
type GroupedPayload struct {
	GroupVars []string       `json:"group_vars"`
	Groups    []GroupPayload `json:"groups"`
}

// GroupPayload pairs one group key with its basis payload
type GroupPayload struct {
	Key   []string `json:"key"`
	Basis Payload  `json:"basis"`
}

// ToPayload converts the grouped basis to its serializable form
func (g *GroupedBasis) ToPayload() GroupedPayload {
	p := GroupedPayload{Groups: make([]GroupPayload, 0, len(g.keys))}
	for _, v := range g.GroupVars {
		p.GroupVars = append(p.GroupVars, string(v))
	}
	for _, key := range g.keys {
		p.Groups = append(p.Groups, GroupPayload{
			Key:   key.Values(),
			Basis: g.bases[key].ToPayload(),
		})
	}
	return p
}

// GroupedFromPayload rebuilds a grouped basis from its serializable form
func GroupedFromPayload(p GroupedPayload) (*GroupedBasis, error) {
	groupVars := make([]core.VariableKey, len(p.GroupVars))
	for i, name := range p.GroupVars {
		v, err := core.ParseVariableKey(name)
		if err != nil {
			return nil, err
		}
		groupVars[i] = v
	}
	grouped := NewGrouped(groupVars)
	for _, gp := range p.Groups {
		b, err := FromPayload(gp.Basis)
		if err != nil {
			return nil, core.NewGroupError(core.NewGroupKey(gp.Key...), err)
		}
		if err := grouped.Put(core.NewGroupKey(gp.Key...), b); err != nil {
			return nil, err
		}
	}
	return grouped, nil
}
