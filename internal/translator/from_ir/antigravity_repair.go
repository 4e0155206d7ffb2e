package from_ir

import (
	"github.com/bridgekit/llm-bridge/internal/logging"
)

// pendingToolGroup tracks one model turn's function calls awaiting their
// grouped responses. responses is positional against names.
type pendingToolGroup struct {
	names     []string
	responses []map[string]any
	filled    int
	insertAt  int
}

// repairToolPairing regroups functionResponse parts so every model turn
// with function calls is immediately followed by a single user turn
// carrying all matching responses, in call order. Responses that cannot be
// matched by name are taken from the orphan pool, and missing ones are
// synthesized as recovered placeholders. Non-function items pass through
// untouched and the pass is idempotent.
func repairToolPairing(contents []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(contents))
	var pending []*pendingToolGroup
	var orphans []map[string]any

	flushComplete := func() {
		for i := 0; i < len(pending); {
			g := pending[i]
			if g.filled < len(g.names) {
				i++
				continue
			}
			out = append(out, map[string]any{"role": "user", "parts": anySlice(g.responses)})
			pending = append(pending[:i], pending[i+1:]...)
		}
	}

	for _, item := range contents {
		parts := itemParts(item)
		role, _ := item["role"].(string)

		if role == "model" {
			var callNames []string
			for _, part := range parts {
				if fc, ok := part["functionCall"].(map[string]any); ok {
					name, _ := fc["name"].(string)
					callNames = append(callNames, name)
				}
			}
			out = append(out, item)
			if len(callNames) > 0 {
				pending = append(pending, &pendingToolGroup{
					names:     callNames,
					responses: make([]map[string]any, len(callNames)),
					insertAt:  len(out) - 1,
				})
			}
			continue
		}

		var respParts, otherParts []map[string]any
		for _, part := range parts {
			if _, ok := part["functionResponse"]; ok {
				respParts = append(respParts, part)
			} else {
				otherParts = append(otherParts, part)
			}
		}
		if len(respParts) == 0 {
			out = append(out, item)
			continue
		}

		for _, rp := range respParts {
			if !assignResponse(pending, rp) {
				orphans = append(orphans, rp)
			}
		}
		if len(otherParts) > 0 {
			rest := map[string]any{"role": role, "parts": anySlice(otherParts)}
			out = append(out, rest)
		}
		flushComplete()
	}

	// Reconstruct still-pending groups in descending insertion index so
	// earlier indices are not shifted by the inserts.
	for i := len(pending) - 1; i >= 0; i-- {
		g := pending[i]
		group := make([]map[string]any, 0, len(g.names))
		for j, name := range g.names {
			if g.responses[j] != nil {
				group = append(group, g.responses[j])
				continue
			}
			if orphan := takeOrphan(&orphans, name); orphan != nil {
				group = append(group, orphan)
				continue
			}
			logging.Warnf("tool pairing unresolved: synthesizing placeholder response for %q", name)
			group = append(group, map[string]any{
				"functionResponse": map[string]any{
					"name": name,
					"response": map[string]any{
						"error":     "recovered placeholder",
						"recovered": true,
					},
				},
			})
		}
		insert := map[string]any{"role": "user", "parts": anySlice(group)}
		at := g.insertAt + 1
		out = append(out, nil)
		copy(out[at+1:], out[at:])
		out[at] = insert
	}
	return out
}

// assignResponse places rp into the most recent pending group with an
// unfilled slot of the same function name.
func assignResponse(pending []*pendingToolGroup, rp map[string]any) bool {
	fr, _ := rp["functionResponse"].(map[string]any)
	name, _ := fr["name"].(string)
	for i := len(pending) - 1; i >= 0; i-- {
		g := pending[i]
		for j, n := range g.names {
			if g.responses[j] == nil && n == name {
				g.responses[j] = rp
				g.filled++
				return true
			}
		}
	}
	return false
}

// takeOrphan removes and returns an orphan response, preferring a name
// match, else the first available.
func takeOrphan(orphans *[]map[string]any, name string) map[string]any {
	pool := *orphans
	for i, rp := range pool {
		fr, _ := rp["functionResponse"].(map[string]any)
		if n, _ := fr["name"].(string); n == name {
			*orphans = append(pool[:i], pool[i+1:]...)
			return rp
		}
	}
	if len(pool) > 0 {
		rp := pool[0]
		*orphans = pool[1:]
		return rp
	}
	return nil
}

// itemParts extracts a content item's parts across the map shapes the
// builder and a re-parsed payload produce.
func itemParts(item map[string]any) []map[string]any {
	switch parts := item["parts"].(type) {
	case []map[string]any:
		return parts
	case []any:
		out := make([]map[string]any, 0, len(parts))
		for _, p := range parts {
			if m, ok := p.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func anySlice(parts []map[string]any) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}
