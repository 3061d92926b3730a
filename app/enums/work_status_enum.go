package enums

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// WorkStatus is the exported type for the enum
type WorkStatus struct {
	name  string
	value int
}

// WorkStatus values
var (
	WorkStatusEnqueued  = WorkStatus{name: "enqueued", value: int(workStatusEnqueued)}
	WorkStatusRunning   = WorkStatus{name: "running", value: int(workStatusRunning)}
	WorkStatusSucceeded = WorkStatus{name: "succeeded", value: int(workStatusSucceeded)}
	WorkStatusFailed    = WorkStatus{name: "failed", value: int(workStatusFailed)}
	WorkStatusCancelled = WorkStatus{name: "cancelled", value: int(workStatusCancelled)}
)

// WorkStatusValues contains all possible enum values in declaration order
var WorkStatusValues = []WorkStatus{
	WorkStatusEnqueued,
	WorkStatusRunning,
	WorkStatusSucceeded,
	WorkStatusFailed,
	WorkStatusCancelled,
}

// String returns the lower-case name of the status
func (e WorkStatus) String() string { return e.name }

// Index returns the underlying integer value
func (e WorkStatus) Index() int { return e.value }

// ParseWorkStatus converts a string to WorkStatus, case-insensitive
func ParseWorkStatus(v string) (WorkStatus, error) {
	for _, st := range WorkStatusValues {
		if strings.EqualFold(st.name, strings.TrimSpace(v)) {
			return st, nil
		}
	}
	return WorkStatus{}, fmt.Errorf("invalid work status %q", v)
}

// MustWorkStatus is like ParseWorkStatus but panics on invalid input
func MustWorkStatus(v string) WorkStatus {
	st, err := ParseWorkStatus(v)
	if err != nil {
		panic(err)
	}
	return st
}

// MarshalText implements encoding.TextMarshaler
func (e WorkStatus) MarshalText() ([]byte, error) {
	return []byte(e.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *WorkStatus) UnmarshalText(text []byte) error {
	st, err := ParseWorkStatus(string(text))
	if err != nil {
		return err
	}
	*e = st
	return nil
}

// Value implements driver.Valuer, statuses are stored by name
func (e WorkStatus) Value() (driver.Value, error) {
	if e.name == "" {
		return nil, fmt.Errorf("empty work status")
	}
	return e.name, nil
}

// Scan implements sql.Scanner
func (e *WorkStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		return e.UnmarshalText([]byte(v))
	case []byte:
		return e.UnmarshalText(v)
	case nil:
		return fmt.Errorf("can't scan nil into work status")
	default:
		return fmt.Errorf("can't scan %T into work status", value)
	}
}
