// Package types holds the HTTP request contracts shared by the server and
// its tests.
package types

import (
	"github.com/zscore-fintech/zscore-engine/internal/record"
)

// AssessRequest is the body of POST /assess.
type AssessRequest struct {
	Record record.AlternativeDataRecord `json:"record" binding:"required"`
}

// ActionRequest is the body of POST /applicants/:id/actions.
type ActionRequest struct {
	Action string `json:"action" binding:"required"`
}
