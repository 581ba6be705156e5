package store

import (
	"time"

	"reqdesk/core/rbac"
)

func roleFromString(s string) rbac.Role {
	return rbac.Resolve(s, "")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
