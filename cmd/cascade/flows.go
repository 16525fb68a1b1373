package main

import (
	"context"

	"github.com/cascadehq/cascade/pkg/flow"
)

// orderSchema validates kickoff inputs for the built-in order flow.
var orderSchema = []byte(`{
	"type": "object",
	"properties": {
		"sku": {"type": "string"},
		"qty": {"type": "integer", "minimum": 0}
	},
	"required": ["sku"]
}`)

// flows returns the graphs this binary serves. Add your own flows here.
func flows() []*flow.Graph {
	order, err := flow.NewBuilder("order").
		InputSchema(orderSchema).
		Start("intake", func(ctx context.Context, call *flow.Call) (any, error) {
			sku, _ := call.State.Get("sku")
			qty, _ := call.State.Get("qty")
			if qty == nil {
				qty = 0
			}
			return map[string]any{"sku": sku, "qty": qty}, nil
		}).
		Route("triage", flow.On("intake"), func(ctx context.Context, call *flow.Call) (string, error) {
			if m, ok := call.Input.(map[string]any); ok {
				if n, ok := asInt(m["qty"]); ok && n > 0 {
					return "accept", nil
				}
			}
			return "reject", nil
		}, "accept", "reject").
		Listen("reserve", flow.On("accept"), func(ctx context.Context, call *flow.Call) (any, error) {
			call.State.Set("reserved", true)
			return "reserved", nil
		}).
		Listen("decline", flow.On("reject"), func(ctx context.Context, call *flow.Call) (any, error) {
			return "declined", nil
		}).
		Listen("confirm", flow.And(flow.On("intake"), flow.On("reserve")), func(ctx context.Context, call *flow.Call) (any, error) {
			out, _ := call.Output("intake")
			return map[string]any{"order": out, "status": "confirmed"}, nil
		}).
		Build()
	if err != nil {
		panic(err)
	}
	return []*flow.Graph{order}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
