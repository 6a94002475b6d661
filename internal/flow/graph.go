package flow

import (
	"fmt"
)

// graphIndex holds every identifier declared in a typebot, by kind.
type graphIndex struct {
	groups map[string]map[string]bool // group id -> block ids
	blocks map[string]bool
	items  map[string]bool
	events map[string]bool
	edges  map[string]bool
}

type graphChecker struct {
	violations []Violation
	idx        graphIndex
}

func (c *graphChecker) add(field, kind, msg string) {
	c.violations = append(c.violations, Violation{Field: field, Kind: kind, Msg: msg})
}

// CheckGraph verifies identifier wiring inside a shape-valid typebot object:
// ids are unique per kind, every outgoingEdgeId names an edge, and every
// edge endpoint names an existing event, block, item or group. Problems are
// reported in document order, one violation each.
func CheckGraph(typebot map[string]any) []Violation {
	c := &graphChecker{idx: graphIndex{
		groups: map[string]map[string]bool{},
		blocks: map[string]bool{},
		items:  map[string]bool{},
		events: map[string]bool{},
		edges:  map[string]bool{},
	}}

	events := objects(c, typebot, "events", "typebot.events")
	groups := objects(c, typebot, "groups", "typebot.groups")
	edges := objects(c, typebot, "edges", "typebot.edges")

	for _, e := range events {
		c.declare(e, "event", c.idx.events)
	}
	blocksByGroup := make([][]entry, len(groups))
	itemsByBlock := map[string][]entry{}
	for gi, g := range groups {
		groupID, ok := c.declare(g, "group", nil)
		blockIDs := map[string]bool{}
		if ok {
			if _, dup := c.idx.groups[groupID]; dup {
				c.add(g.path+".id", KindDuplicate, fmt.Sprintf("duplicate group id %q", groupID))
			} else {
				c.idx.groups[groupID] = blockIDs
			}
		}
		blocksByGroup[gi] = objects(c, g.obj, "blocks", g.path+".blocks")
		for _, b := range blocksByGroup[gi] {
			if blockID, ok := c.declare(b, "block", c.idx.blocks); ok {
				blockIDs[blockID] = true
			}
			items := objects(c, b.obj, "items", b.path+".items")
			itemsByBlock[b.path] = items
			for _, it := range items {
				c.declare(it, "item", c.idx.items)
			}
		}
	}
	for _, e := range edges {
		c.declare(e, "edge", c.idx.edges)
	}

	for _, e := range events {
		c.checkOutgoing(e)
	}
	for gi := range groups {
		for _, b := range blocksByGroup[gi] {
			c.checkOutgoing(b)
			for _, it := range itemsByBlock[b.path] {
				c.checkOutgoing(it)
			}
		}
	}
	for _, e := range edges {
		c.checkEdge(e)
	}

	return c.violations
}

// entry is an array element that decoded as an object, with its path.
type entry struct {
	obj  map[string]any
	path string
}

// objects returns the object elements of m[key]. Absent arrays are empty;
// non-array values and non-object elements are reported and skipped.
func objects(c *graphChecker, m map[string]any, key, path string) []entry {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		c.add(path, KindType, "must be an array")
		return nil
	}
	out := make([]entry, 0, len(arr))
	for i, el := range arr {
		p := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := el.(map[string]any)
		if !ok {
			c.add(p, KindType, "must be an object")
			continue
		}
		out = append(out, entry{obj: obj, path: p})
	}
	return out
}

// declare reads the id of e and records it in set. A nil set only reads.
func (c *graphChecker) declare(e entry, kind string, set map[string]bool) (string, bool) {
	raw, ok := e.obj["id"]
	if !ok || raw == nil {
		c.add(e.path+".id", KindMissing, "required field is missing")
		return "", false
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		c.add(e.path+".id", KindType, "must be a non-empty string")
		return "", false
	}
	if set == nil {
		return id, true
	}
	if set[id] {
		c.add(e.path+".id", KindDuplicate, fmt.Sprintf("duplicate %s id %q", kind, id))
		return id, false
	}
	set[id] = true
	return id, true
}

func (c *graphChecker) checkOutgoing(e entry) {
	id, state := c.reference(e.obj, "outgoingEdgeId", e.path+".outgoingEdgeId")
	if state == refPresent && !c.idx.edges[id] {
		c.add(e.path+".outgoingEdgeId", KindDangling, fmt.Sprintf("references unknown edge %q", id))
	}
}

func (c *graphChecker) checkEdge(e entry) {
	if from, ok := c.endpoint(e, "from"); ok {
		refs := 0
		if id, state := c.reference(from, "eventId", e.path+".from.eventId"); state != refAbsent {
			refs++
			if state == refPresent && !c.idx.events[id] {
				c.add(e.path+".from.eventId", KindDangling, fmt.Sprintf("references unknown event %q", id))
			}
		}
		if id, state := c.reference(from, "blockId", e.path+".from.blockId"); state != refAbsent {
			refs++
			if state == refPresent && !c.idx.blocks[id] {
				c.add(e.path+".from.blockId", KindDangling, fmt.Sprintf("references unknown block %q", id))
			}
		}
		if id, state := c.reference(from, "itemId", e.path+".from.itemId"); state != refAbsent {
			refs++
			if state == refPresent && !c.idx.items[id] {
				c.add(e.path+".from.itemId", KindDangling, fmt.Sprintf("references unknown item %q", id))
			}
		}
		if refs == 0 {
			c.add(e.path+".from", KindMissing, "must reference an event, block or item")
		}
	}

	to, ok := c.endpoint(e, "to")
	if !ok {
		return
	}
	groupID, state := c.reference(to, "groupId", e.path+".to.groupId")
	switch state {
	case refInvalid:
		return
	case refAbsent:
		c.add(e.path+".to.groupId", KindMissing, "required field is missing")
		return
	}
	blocks, known := c.idx.groups[groupID]
	if !known {
		c.add(e.path+".to.groupId", KindDangling, fmt.Sprintf("references unknown group %q", groupID))
		return
	}
	if blockID, state := c.reference(to, "blockId", e.path+".to.blockId"); state == refPresent && !blocks[blockID] {
		c.add(e.path+".to.blockId", KindDangling, fmt.Sprintf("references block %q which is not in group %q", blockID, groupID))
	}
}

func (c *graphChecker) endpoint(e entry, key string) (map[string]any, bool) {
	raw, ok := e.obj[key]
	if !ok || raw == nil {
		c.add(e.path+"."+key, KindMissing, "required field is missing")
		return nil, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		c.add(e.path+"."+key, KindType, "must be an object")
		return nil, false
	}
	return m, true
}

type refState int

const (
	refAbsent refState = iota
	refPresent
	// refInvalid means a non-string value was found and already reported.
	refInvalid
)

// reference reads an optional string id. Non-string values are reported.
func (c *graphChecker) reference(m map[string]any, key, path string) (string, refState) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", refAbsent
	}
	id, ok := raw.(string)
	if !ok {
		c.add(path, KindType, "must be a string")
		return "", refInvalid
	}
	if id == "" {
		return "", refAbsent
	}
	return id, refPresent
}
