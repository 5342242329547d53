package engine

import (
	"encoding/json"

	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// Journal event payloads. Each mirrors exactly the state mutation its event
// type represents, so Recover can replay it without re-deriving anything
// (spec §4.2 step 11 only journals a pass once it has been fully resolved
// into a credited lap; arming and drops are never journaled).

type passPayload struct {
	EntrantID   int64  `json:"entrant_id"`
	DeltaS      float64 `json:"delta_s"`
	ClockMs     int64  `json:"clock_ms"`
	FinishOrder *int   `json:"finish_order,omitempty"`
}

type flagChangePayload struct {
	Phase            model.Phase `json:"phase"`
	Flag             model.Flag  `json:"flag"`
	ClockMs          int64       `json:"clock_ms"`
	Running          bool        `json:"running"`
	CheckeredStartMs *int64      `json:"checkered_start_ms,omitempty"`
}

type entrantEnablePayload struct {
	EntrantID int64 `json:"entrant_id"`
	Enabled   bool  `json:"enabled"`
}

type assignTagPayload struct {
	EntrantID int64   `json:"entrant_id"`
	Tag       *string `json:"tag,omitempty"`
}

type entrantUpsertPayload struct {
	Entrant model.Entrant `json:"entrant"`
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every payload type here is a plain struct of scalars/pointers;
		// Marshal only fails on unsupported types (channels, funcs), which
		// never appear in these payloads.
		panic(err)
	}
	return b
}
