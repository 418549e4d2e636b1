package academic

import (
	"fmt"
	"strings"
	"time"

	"academic-service/internal/db"

	"github.com/uptrace/bun"
)

const (
	tableName = "m_academic_year"

	constraintName      = "academic_year_name"
	constraintShortName = "academic_year_short_name"
)

type AcademicYear struct {
	bun.BaseModel `bun:"table:m_academic_year,alias:ay"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Name        string     `bun:"name,notnull,type:varchar(250)"`
	ShortName   string     `bun:"short_name,notnull,type:varchar(100)"`
	Description *string    `bun:"description,type:varchar(250)"`
	StartDate   time.Time  `bun:"start_date,notnull,type:date"`
	EndDate     time.Time  `bun:"end_date,notnull,type:date"`
	Status      Status     `bun:"status_enum,notnull,type:integer"`
	CreatedBy   *int64     `bun:"created_by_userid"`
	ModifiedBy  *int64     `bun:"modified_by_userid"`
	CreatedOn   *time.Time `bun:"created_on_date,type:date"`
	ModifiedOn  *time.Time `bun:"modified_on_date,type:date"`
}

// Indexes are the uniqueness rules for live (not deleted) academic years.
func Indexes() []db.Index {
	where := fmt.Sprintf("status_enum <> %d", StatusDeleted)
	return []db.Index{
		{Model: (*AcademicYear)(nil), Name: constraintName, Columns: []string{"name"}, Unique: true, Where: where},
		{Model: (*AcademicYear)(nil), Name: constraintShortName, Columns: []string{"short_name"}, Unique: true, Where: where},
	}
}

// EndDatePolicy selects how the end date of a new academic year is set.
type EndDatePolicy int

const (
	// EndDateAsSupplied stores the requested end date.
	EndDateAsSupplied EndDatePolicy = iota
	// EndDateFromStart stores the start date as the end date, as records
	// written by the previous platform did.
	EndDateFromStart
)

// NewAcademicYear builds a pending academic year from a validated create command.
func NewAcademicYear(creatorID int64, cmd *Command, policy EndDatePolicy, today time.Time) *AcademicYear {
	created := dateOf(today)

	ay := &AcademicYear{
		Name:      deref(cmd.Name),
		ShortName: deref(cmd.ShortName),
		Status:    StatusPending,
		CreatedOn: &created,
	}
	if creatorID != 0 {
		ay.CreatedBy = &creatorID
	}
	if cmd.Description != nil && *cmd.Description != "" {
		d := *cmd.Description
		ay.Description = &d
	}
	if cmd.StartDate != nil {
		ay.StartDate = *cmd.StartDate
	}
	if cmd.EndDate != nil {
		ay.EndDate = *cmd.EndDate
		if policy == EndDateFromStart && cmd.StartDate != nil {
			ay.EndDate = *cmd.StartDate
		}
	}
	return ay
}

// Update applies the fields present in cmd and returns those that changed,
// keyed by request parameter. Date changes also carry the request's locale
// and dateFormat.
func (a *AcademicYear) Update(cmd *Command) map[string]any {
	changes := make(map[string]any)

	if cmd.Name != nil && *cmd.Name != a.Name {
		changes[paramName] = *cmd.Name
		a.Name = *cmd.Name
	}
	if cmd.ShortName != nil && *cmd.ShortName != a.ShortName {
		changes[paramShortName] = *cmd.ShortName
		a.ShortName = *cmd.ShortName
	}
	if cmd.Description != nil && *cmd.Description != deref(a.Description) {
		changes[paramDescription] = *cmd.Description
		if *cmd.Description == "" {
			a.Description = nil
		} else {
			d := *cmd.Description
			a.Description = &d
		}
	}

	dateChanged := false
	if cmd.StartDate != nil && !sameDate(*cmd.StartDate, a.StartDate) {
		changes[paramStartDate] = cmd.startDateInput
		a.StartDate = *cmd.StartDate
		dateChanged = true
	}
	if cmd.EndDate != nil && !sameDate(*cmd.EndDate, a.EndDate) {
		changes[paramEndDate] = cmd.endDateInput
		a.EndDate = *cmd.EndDate
		dateChanged = true
	}
	if dateChanged {
		if cmd.DateFormat != "" {
			changes[paramDateFormat] = cmd.DateFormat
		}
		if cmd.Locale != "" {
			changes[paramLocale] = cmd.Locale
		}
	}

	return changes
}

func (a *AcademicYear) Delete() error {
	switch a.Status {
	case StatusDeleted:
		return stateError("already.in.deleted.state", "Academic year is already deleted.")
	case StatusInvalid:
		return invalidStatus()
	case StatusPending, StatusActive, StatusClosed:
		a.Status = StatusDeleted
		return nil
	}
	return invalidStatus()
}

// Activate is allowed from any known state except active itself.
func (a *AcademicYear) Activate() error {
	switch a.Status {
	case StatusActive:
		return stateError("already.in.active.state", "Academic year is already active.")
	case StatusInvalid:
		return invalidStatus()
	case StatusPending, StatusClosed, StatusDeleted:
		a.Status = StatusActive
		return nil
	}
	return invalidStatus()
}

// Close is allowed from any known state except closed itself.
func (a *AcademicYear) Close() error {
	switch a.Status {
	case StatusClosed:
		return stateError("already.in.closed.state", "Academic year is already closed.")
	case StatusInvalid:
		return invalidStatus()
	case StatusPending, StatusActive, StatusDeleted:
		a.Status = StatusClosed
		return nil
	}
	return invalidStatus()
}

// touch stamps the last modifier.
func (a *AcademicYear) touch(userID int64, today time.Time) {
	d := dateOf(today)
	a.ModifiedOn = &d
	if userID != 0 {
		a.ModifiedBy = &userID
	}
}

func invalidStatus() error {
	ve := stateError("invalid.status", "Academic year has an unrecognised status and cannot change state.")
	ve.Errors[0].Code = "error.msg.academic.year.invalid.status"
	return ve
}

// AcademicYearData is the read view returned by the API.
type AcademicYearData struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	ShortName   string       `json:"shortName"`
	Description string       `json:"description,omitempty"`
	StartDate   Date         `json:"startDate"`
	EndDate     Date         `json:"endDate"`
	Status      StatusOption `json:"status"`
}

func (a *AcademicYear) ToData() AcademicYearData {
	return AcademicYearData{
		ID:          a.ID,
		Name:        a.Name,
		ShortName:   a.ShortName,
		Description: deref(a.Description),
		StartDate:   Date{a.StartDate},
		EndDate:     Date{a.EndDate},
		Status:      a.Status.Option(),
	}
}

// Date marshals as yyyy-MM-dd.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + formatDate(d.Time) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := parseDate(s, "")
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
