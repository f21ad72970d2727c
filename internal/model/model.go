package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/talentops/match-service/internal/domain"
)

type MatchResult struct {
	ID               int64     `db:"id"`
	JobDescriptionID int64     `db:"job_description_id"`
	ConsultantID     int64     `db:"consultant_id"`
	Rank             int       `db:"rank"`
	SimilarityScore  float64   `db:"similarity_score"`
	MatchedAt        time.Time `db:"matched_at"`
}

type JobDescription struct {
	ID             int64     `db:"id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	RequestorEmail string    `db:"requestor_email"`
	CreatedAt      time.Time `db:"created_at"`
}

type ConsultantProfile struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Skills       string `db:"skills"`
	Experience   int    `db:"experience"`
	Location     string `db:"location"`
	Availability string `db:"availability"`
}

// NormalizedAvailability returns the availability column value mapped to the
// domain enum. Raw values never leave the model layer unparsed.
func (p *ConsultantProfile) NormalizedAvailability() domain.Availability {
	return domain.ParseAvailability(p.Availability)
}

type WorkflowStatus struct {
	ID               int64     `db:"id"`
	JobDescriptionID int64     `db:"job_description_id"`
	Steps            StepMap   `db:"steps"`
	Progress         string    `db:"progress"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type Notification struct {
	ID               int64     `db:"id"`
	JobDescriptionID int64     `db:"job_description_id"`
	WorkflowStatusID int64     `db:"workflow_status_id"`
	RecipientEmail   string    `db:"recipient_email"`
	EmailContent     string    `db:"email_content"`
	Status           string    `db:"status"`
	SentAt           time.Time `db:"sent_at"`
}

// StepMap maps workflow milestone names to completion flags, stored as JSONB.
type StepMap map[string]bool

func (m StepMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *StepMap) Scan(src interface{}) error {
	if src == nil {
		*m = StepMap{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StepMap", src)
	}

	return json.Unmarshal(data, m)
}
