package responses

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// StreamTransformer ingests Chat Completions stream chunks and emits
// Responses SSE events. Lifecycle events (created, output_item.added,
// content_part.added) fire exactly once before the first delta; the
// terminal trio (output_text.done, output_item.done, completed) fires
// exactly once after the last delta. Empty chunks produce no events.
type StreamTransformer struct {
	ResponseID string
	ItemID     string
	Model      string
	CreatedAt  int64

	accumulated strings.Builder
	started     bool
	finished    bool
	seq         int
	usage       map[string]any
}

// NewStreamTransformer creates the per-stream state.
func NewStreamTransformer(model string) *StreamTransformer {
	return &StreamTransformer{
		ResponseID: ir.GenMessageID("resp"),
		ItemID:     ir.GenMessageID("msg"),
		Model:      model,
		CreatedAt:  time.Now().Unix(),
	}
}

func (t *StreamTransformer) event(eventType string, payload map[string]any) ([]byte, error) {
	payload["type"] = eventType
	t.seq++
	payload["sequence_number"] = t.seq
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return ir.BuildSSEEvent(eventType, data), nil
}

func (t *StreamTransformer) responseObject(status string) map[string]any {
	return map[string]any{
		"id":         t.ResponseID,
		"object":     "response",
		"created_at": t.CreatedAt,
		"status":     status,
		"model":      t.Model,
		"output":     ir.EmptySlice,
	}
}

// Transform converts one Chat stream payload (the JSON after "data: ",
// [DONE] excluded) into zero or more framed Responses events.
func (t *StreamTransformer) Transform(chatChunk []byte) ([][]byte, error) {
	if len(chatChunk) == 0 || t.finished {
		return nil, nil
	}
	parsed := gjson.ParseBytes(chatChunk)
	if t.Model == "" {
		t.Model = parsed.Get("model").String()
	}
	if usage := parsed.Get("usage"); usage.Exists() && usage.IsObject() {
		t.usage = map[string]any{
			"input_tokens":  usage.Get("prompt_tokens").Int(),
			"output_tokens": usage.Get("completion_tokens").Int(),
			"total_tokens":  usage.Get("total_tokens").Int(),
		}
	}

	choice := parsed.Get("choices.0")
	if !choice.Exists() {
		return nil, nil
	}
	content := choice.Get("delta.content").String()
	finish := choice.Get("finish_reason")

	var frames [][]byte

	if content != "" {
		if !t.started {
			t.started = true
			start, err := t.lifecycleFrames()
			if err != nil {
				return nil, err
			}
			frames = append(frames, start...)
		}
		t.accumulated.WriteString(content)
		delta, err := t.event("response.output_text.delta", map[string]any{
			"item_id":       t.ItemID,
			"output_index":  0,
			"content_index": 0,
			"delta":         content,
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, delta)
	}

	if finish.Exists() && finish.Type != gjson.Null && finish.String() != "" {
		done, err := t.finishFrames(finish.String())
		if err != nil {
			return nil, err
		}
		frames = append(frames, done...)
	}
	return frames, nil
}

func (t *StreamTransformer) lifecycleFrames() ([][]byte, error) {
	created, err := t.event("response.created", map[string]any{
		"response": t.responseObject("in_progress"),
	})
	if err != nil {
		return nil, err
	}
	itemAdded, err := t.event("response.output_item.added", map[string]any{
		"output_index": 0,
		"item": map[string]any{
			"id":      t.ItemID,
			"type":    "message",
			"status":  "in_progress",
			"role":    "assistant",
			"content": ir.EmptySlice,
		},
	})
	if err != nil {
		return nil, err
	}
	partAdded, err := t.event("response.content_part.added", map[string]any{
		"item_id":       t.ItemID,
		"output_index":  0,
		"content_index": 0,
		"part":          map[string]any{"type": "output_text", "text": "", "annotations": ir.EmptySlice},
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{created, itemAdded, partAdded}, nil
}

func (t *StreamTransformer) finishFrames(finish string) ([][]byte, error) {
	if t.finished {
		return nil, nil
	}
	t.finished = true

	var frames [][]byte
	text := t.accumulated.String()

	if t.started {
		textDone, err := t.event("response.output_text.done", map[string]any{
			"item_id":       t.ItemID,
			"output_index":  0,
			"content_index": 0,
			"text":          text,
		})
		if err != nil {
			return nil, err
		}
		itemDone, err := t.event("response.output_item.done", map[string]any{
			"output_index": 0,
			"item": map[string]any{
				"id":     t.ItemID,
				"type":   "message",
				"status": "completed",
				"role":   "assistant",
				"content": []map[string]any{{
					"type":        "output_text",
					"text":        text,
					"annotations": ir.EmptySlice,
				}},
			},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, textDone, itemDone)
	}

	status, incompleteReason := finishToStatus(finish)
	response := t.responseObject(status)
	if t.started {
		response["output"] = []map[string]any{{
			"id":     t.ItemID,
			"type":   "message",
			"status": "completed",
			"role":   "assistant",
			"content": []map[string]any{{
				"type":        "output_text",
				"text":        text,
				"annotations": ir.EmptySlice,
			}},
		}}
	}
	if incompleteReason != "" {
		response["incomplete_details"] = map[string]any{"reason": incompleteReason}
	}
	if t.usage != nil {
		response["usage"] = t.usage
	}
	completed, err := t.event("response.completed", map[string]any{"response": response})
	if err != nil {
		return nil, err
	}
	return append(frames, completed), nil
}
