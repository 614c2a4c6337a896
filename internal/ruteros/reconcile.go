package ruteros

import (
	"fmt"

	"github.com/distriflow/distriflow/internal/deliveries"
)

// WarningKind classifies why a route cannot be completed yet.
type WarningKind string

const (
	WarningNoStops           WarningKind = "no_stops"
	WarningNotStarted        WarningKind = "not_started"
	WarningPendingDeliveries WarningKind = "pending_deliveries"
	WarningGenerationFailed  WarningKind = "generation_failed"
)

// Warning explains a completion-eligibility gap. Gaps are data, not errors.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Evaluation is the reconciliation verdict for one route.
type Evaluation struct {
	RuteroID      int64    `json:"rutero_id"`
	CanComplete   bool     `json:"can_complete"`
	TotalCount    int      `json:"total_count"`
	ResolvedCount int      `json:"resolved_count"`
	PendingCount  int      `json:"pending_count"`
	Warning       *Warning `json:"warning,omitempty"`
}

// Evaluate computes completion eligibility for a route from its deliveries.
// Pure and idempotent: same inputs, same verdict, no side effects. A failed
// delivery counts as resolved; completion does not require every stop to
// succeed.
func Evaluate(route Route, dels []deliveries.Delivery) Evaluation {
	ev := Evaluation{RuteroID: route.ID, TotalCount: len(dels)}

	for _, d := range dels {
		if d.Status.Terminal() {
			ev.ResolvedCount++
		} else {
			ev.PendingCount++
		}
	}

	switch {
	case route.Status == StatusPublicado && len(route.Stops) == 0:
		ev.Warning = &Warning{Kind: WarningNoStops, Message: "route has no stops"}
	case route.Status == StatusPublicado:
		ev.Warning = &Warning{Kind: WarningNotStarted, Message: "route has not started"}
	case route.Status == StatusEnCurso && len(dels) == 0:
		// Started route with zero deliveries means generation failed at
		// start time; requires operator intervention.
		ev.Warning = &Warning{Kind: WarningGenerationFailed, Message: "no deliveries were generated for this route"}
	case ev.PendingCount > 0:
		ev.Warning = &Warning{
			Kind:    WarningPendingDeliveries,
			Message: fmt.Sprintf("%d deliveries still unresolved", ev.PendingCount),
		}
	}

	ev.CanComplete = route.Status == StatusEnCurso && len(dels) > 0 && ev.PendingCount == 0
	return ev
}
