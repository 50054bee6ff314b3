package taskapi

import (
	"sort"
	"time"

	"taskboard/internal/models"
)

// wireTask is the task record as the park API encodes it. The faulty entity
// arrives as a set of nullable foreign keys, at most one of which is set.
type wireTask struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	TaskStatus        string     `json:"taskStatus"`
	TaskUrgency       string     `json:"taskUrgency"`
	Position          float64    `json:"position"`
	AssignedStaffID   *string    `json:"assignedStaffId"`
	SubmittingStaffID string     `json:"submittingStaffId"`
	ParkID            int64      `json:"parkId,omitempty"`
	DueDate           *time.Time `json:"dueDate"`
	CompletedDate     *time.Time `json:"completedDate"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	FacilityID   *string `json:"facilityId,omitempty"`
	ParkAssetID  *string `json:"parkAssetId,omitempty"`
	SensorID     *string `json:"sensorId,omitempty"`
	HubID        *string `json:"hubId,omitempty"`
	OccurrenceID *string `json:"occurrenceId,omitempty"`
}

func (w wireTask) entity() models.FaultyEntityRef {
	refs := []struct {
		typ models.EntityType
		id  *string
	}{
		{models.EntityFacility, w.FacilityID},
		{models.EntityParkAsset, w.ParkAssetID},
		{models.EntitySensor, w.SensorID},
		{models.EntityHub, w.HubID},
		{models.EntityOccurrence, w.OccurrenceID},
	}
	for _, r := range refs {
		if r.id != nil && *r.id != "" {
			return models.FaultyEntityRef{Type: r.typ, ID: *r.id}
		}
	}
	return models.FaultyEntityRef{}
}

func (w wireTask) toModel(kind models.TaskKind) models.Task {
	t := models.Task{
		ID:                w.ID,
		Kind:              kind,
		Title:             w.Title,
		Description:       w.Description,
		Status:            models.TaskStatus(w.TaskStatus),
		Urgency:           models.Urgency(w.TaskUrgency),
		AssignedStaffID:   w.AssignedStaffID,
		SubmittingStaffID: w.SubmittingStaffID,
		ParkID:            w.ParkID,
		FaultyEntity:      w.entity(),
		DueDate:           w.DueDate,
		CompletedDate:     w.CompletedDate,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
	return t.Clone()
}

// toModels converts a listing and replaces the API's fractional positions
// with dense per-column ranks.
func toModels(kind models.TaskKind, in []wireTask) []models.Task {
	sorted := append([]wireTask(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})

	rank := make(map[string]int64)
	out := make([]models.Task, 0, len(sorted))
	for _, w := range sorted {
		t := w.toModel(kind)
		t.Position = rank[w.TaskStatus]
		rank[w.TaskStatus]++
		out = append(out, t)
	}
	return out
}

type assignRequest struct {
	StaffID string `json:"staffId"`
}

type statusRequest struct {
	Status        models.TaskStatus `json:"status"`
	ActingStaffID string            `json:"actingStaffId"`
}

type positionRequest struct {
	Index int `json:"index"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
