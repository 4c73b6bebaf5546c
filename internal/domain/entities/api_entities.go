package entities

import "github.com/stackmotive/stackmotive/pkg/pagination"

// ErrorResponse represents API error responses
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RingListResponse is one page of a user's rings
type RingListResponse struct {
	Rings      []*AllocationRing    `json:"rings"`
	Pagination *pagination.PageInfo `json:"pagination"`
}
