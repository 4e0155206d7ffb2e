package from_ir

import (
	"testing"
)

func call(name string) map[string]any {
	return map[string]any{"functionCall": map[string]any{"name": name, "args": map[string]any{}}}
}

func response(name, payload string) map[string]any {
	return map[string]any{"functionResponse": map[string]any{
		"name":     name,
		"response": map[string]any{"result": payload},
	}}
}

func modelTurn(parts ...map[string]any) map[string]any {
	return map[string]any{"role": "model", "parts": anySlice(parts)}
}

func userTurn(parts ...map[string]any) map[string]any {
	return map[string]any{"role": "user", "parts": anySlice(parts)}
}

func partName(t *testing.T, item map[string]any, idx int) string {
	t.Helper()
	parts := itemParts(item)
	if idx >= len(parts) {
		t.Fatalf("turn has %d parts, want index %d", len(parts), idx)
	}
	fr, _ := parts[idx]["functionResponse"].(map[string]any)
	if fr == nil {
		t.Fatalf("part %d is not a functionResponse: %v", idx, parts[idx])
	}
	name, _ := fr["name"].(string)
	return name
}

func TestRepairGroupsSplitResponses(t *testing.T) {
	in := []map[string]any{
		modelTurn(call("alpha"), call("beta")),
		userTurn(response("alpha", "a")),
		userTurn(response("beta", "b")),
	}
	out := repairToolPairing(in)
	if len(out) != 2 {
		t.Fatalf("turns = %d, want model + one grouped user", len(out))
	}
	if role, _ := out[0]["role"].(string); role != "model" {
		t.Fatalf("first turn role = %q", role)
	}
	if len(itemParts(out[1])) != 2 {
		t.Fatalf("grouped turn parts = %d", len(itemParts(out[1])))
	}
	if got := partName(t, out[1], 0); got != "alpha" {
		t.Fatalf("first response = %q, must follow call order", got)
	}
	if got := partName(t, out[1], 1); got != "beta" {
		t.Fatalf("second response = %q", got)
	}
}

func TestRepairReordersOutOfOrderResponses(t *testing.T) {
	in := []map[string]any{
		modelTurn(call("alpha"), call("beta")),
		userTurn(response("beta", "b"), response("alpha", "a")),
	}
	out := repairToolPairing(in)
	if len(out) != 2 {
		t.Fatalf("turns = %d", len(out))
	}
	if got := partName(t, out[1], 0); got != "alpha" {
		t.Fatalf("first response = %q, call order must win", got)
	}
}

func TestRepairSynthesizesPlaceholder(t *testing.T) {
	in := []map[string]any{
		modelTurn(call("alpha"), call("beta")),
		userTurn(response("beta", "b")),
	}
	out := repairToolPairing(in)
	if len(out) != 2 {
		t.Fatalf("turns = %d", len(out))
	}
	parts := itemParts(out[1])
	if len(parts) != 2 {
		t.Fatalf("grouped turn parts = %d", len(parts))
	}
	fr, _ := parts[0]["functionResponse"].(map[string]any)
	if name, _ := fr["name"].(string); name != "alpha" {
		t.Fatalf("placeholder name = %q", name)
	}
	payload, _ := fr["response"].(map[string]any)
	if recovered, _ := payload["recovered"].(bool); !recovered {
		t.Fatalf("placeholder must carry recovered:true, got %v", payload)
	}
	if got := partName(t, out[1], 1); got != "beta" {
		t.Fatalf("real response = %q", got)
	}
}

func TestRepairAdoptsOrphanByPosition(t *testing.T) {
	// A response whose name matches nothing pending fills the open slot
	// instead of minting a placeholder alongside a dangling orphan.
	in := []map[string]any{
		modelTurn(call("alpha")),
		userTurn(response("renamed", "x")),
	}
	out := repairToolPairing(in)
	if len(out) != 2 {
		t.Fatalf("turns = %d", len(out))
	}
	if got := partName(t, out[1], 0); got != "renamed" {
		t.Fatalf("adopted orphan = %q", got)
	}
}

func TestRepairKeepsNonToolTurns(t *testing.T) {
	in := []map[string]any{
		userTurn(map[string]any{"text": "hello"}),
		modelTurn(map[string]any{"text": "hi"}),
	}
	out := repairToolPairing(in)
	if len(out) != 2 {
		t.Fatalf("turns = %d", len(out))
	}
	parts := itemParts(out[0])
	if text, _ := parts[0]["text"].(string); text != "hello" {
		t.Fatalf("text = %q", text)
	}
}

func TestRepairIdempotent(t *testing.T) {
	in := []map[string]any{
		modelTurn(call("alpha"), call("beta")),
		userTurn(response("beta", "b")),
		userTurn(map[string]any{"text": "continue"}),
	}
	once := repairToolPairing(in)
	twice := repairToolPairing(once)
	if len(once) != len(twice) {
		t.Fatalf("turns changed on second pass: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		a, b := itemParts(once[i]), itemParts(twice[i])
		if len(a) != len(b) {
			t.Fatalf("turn %d parts changed: %d vs %d", i, len(a), len(b))
		}
		roleA, _ := once[i]["role"].(string)
		roleB, _ := twice[i]["role"].(string)
		if roleA != roleB {
			t.Fatalf("turn %d role changed: %q vs %q", i, roleA, roleB)
		}
	}
}

func TestRepairWellFormedIsIdentity(t *testing.T) {
	in := []map[string]any{
		modelTurn(call("alpha")),
		userTurn(response("alpha", "a")),
		modelTurn(map[string]any{"text": "done"}),
	}
	out := repairToolPairing(in)
	if len(out) != 3 {
		t.Fatalf("turns = %d", len(out))
	}
	if got := partName(t, out[1], 0); got != "alpha" {
		t.Fatalf("response = %q", got)
	}
	if role, _ := out[2]["role"].(string); role != "model" {
		t.Fatalf("trailing turn role = %q", role)
	}
}
