package incident

import "time"

type AttemptResponse struct {
	ActionName    string    `json:"action_name"`
	AttemptNumber int       `json:"attempt_number"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
}

type IncidentResponse struct {
	ID           string            `json:"id"`
	TargetID     string            `json:"target_id"`
	Status       string            `json:"status"`
	CauseSummary string            `json:"cause_summary"`
	OpenedAt     time.Time         `json:"opened_at"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
	Attempts     []AttemptResponse `json:"attempts,omitempty"`
}

type ListIncidentsResponse struct {
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
	Incidents []IncidentResponse `json:"incidents"`
}

func toIncidentResponse(inc *Incident) IncidentResponse {
	resp := IncidentResponse{
		ID:           inc.ID.String(),
		TargetID:     inc.TargetID,
		Status:       string(inc.Status),
		CauseSummary: inc.CauseSummary,
		OpenedAt:     inc.OpenedAt,
	}
	if !inc.ClosedAt.IsZero() {
		t := inc.ClosedAt
		resp.ClosedAt = &t
	}
	for _, a := range inc.Attempts {
		resp.Attempts = append(resp.Attempts, AttemptResponse{
			ActionName:    a.ActionName,
			AttemptNumber: a.AttemptNumber,
			Outcome:       string(a.Outcome),
			Detail:        a.Detail,
			StartedAt:     a.StartedAt,
			FinishedAt:    a.FinishedAt,
		})
	}
	return resp
}
