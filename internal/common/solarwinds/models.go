package solarwinds

import "time"

// ChangeRequest is the body of POST /changes.json.
type ChangeRequest struct {
	Change Change `json:"change"`
}

type Change struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Requester      Requester      `json:"requester"`
	Category       NamedRef       `json:"category"`
	Subcategory    NamedRef       `json:"subcategory"`
	Priority       string         `json:"priority"`
	PlanningFields PlanningFields `json:"planning_fields"`
}

type Requester struct {
	Email string `json:"email"`
}

type NamedRef struct {
	Name string `json:"name"`
}

type PlanningFields struct {
	PlannedStartDate string `json:"planned_start_date"`
	PlannedEndDate   string `json:"planned_end_date"`
}

// ChangeResponse is the subset of the created change returned by the service desk.
type ChangeResponse struct {
	ID        int       `json:"id"`
	Number    string    `json:"number"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
