package driver

import (
	"encoding/json"
	"fmt"

	"macroexp/internal/diag"
	"macroexp/internal/observ"
	"macroexp/internal/source"
)

type timingPayload struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
	observ.Report
}

func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "session"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Path != "" {
		msg = fmt.Sprintf("%s, %s", msg, payload.Path)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	entry := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, msg).
		WithNote(source.Span{}, string(data))
	bag.Add(entry)
}
