package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// StringArray maps a Postgres TEXT[] column, such as a guard's skills.
// A nil slice is stored as an empty array so the column stays NOT NULL.
type StringArray []string

// Value implements the driver.Valuer interface
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return pq.Array([]string{}).Value()
	}
	return pq.Array([]string(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	return pq.Array((*[]string)(a)).Scan(src)
}
