package academic

import (
	"database/sql/driver"
	"fmt"
)

// Status is the lifecycle state of an academic year, stored as status_enum.
type Status int

const (
	StatusInvalid Status = 0
	StatusPending Status = 100
	StatusActive  Status = 300
	StatusClosed  Status = 600
	StatusDeleted Status = 700
)

// StatusFromCode never fails: codes it does not know become StatusInvalid.
func StatusFromCode(code int) Status {
	switch Status(code) {
	case StatusPending, StatusActive, StatusClosed, StatusDeleted:
		return Status(code)
	default:
		return StatusInvalid
	}
}

func (s Status) Code() int { return int(s) }

func (s Status) IsActive() bool  { return s == StatusActive }
func (s Status) IsClosed() bool  { return s == StatusClosed }
func (s Status) IsDeleted() bool { return s == StatusDeleted }

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusActive:
		return "ACTIVE"
	case StatusClosed:
		return "CLOSED"
	case StatusDeleted:
		return "DELETED"
	default:
		return "INVALID"
	}
}

// StatusOption is the display form of a status: numeric id, message key and label.
type StatusOption struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Value string `json:"value"`
}

func (s Status) Option() StatusOption {
	switch s {
	case StatusPending:
		return StatusOption{ID: int64(StatusPending), Code: "academicYearStatusType.pending", Value: "Pending for activation"}
	case StatusActive:
		return StatusOption{ID: int64(StatusActive), Code: "academicYearStatusType.active", Value: "Active"}
	case StatusClosed:
		return StatusOption{ID: int64(StatusClosed), Code: "academicYearStatusType.closed", Value: "Closed"}
	case StatusDeleted:
		return StatusOption{ID: int64(StatusDeleted), Code: "academicYearStatusType.deleted", Value: "Deleted"}
	default:
		return StatusOption{ID: int64(StatusInvalid), Code: "academicYearStatusType.invalid", Value: "Invalid"}
	}
}

// Scan normalises unknown stored codes to StatusInvalid.
func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*s = StatusFromCode(int(v))
	case int32:
		*s = StatusFromCode(int(v))
	case int:
		*s = StatusFromCode(v)
	case nil:
		*s = StatusInvalid
	default:
		return fmt.Errorf("academic: cannot scan %T into Status", src)
	}
	return nil
}

func (s Status) Value() (driver.Value, error) {
	return int64(s), nil
}
