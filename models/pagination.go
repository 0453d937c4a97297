package models

// PaginatedResponse mirrors the backend's page envelope:
// {content: [...], totalPages, totalElements}
type PaginatedResponse[T any] struct {
	Content       []T `json:"content"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
}

// PageRequest carries the list-query parameters that form part of a query key.
type PageRequest struct {
	Page   int    `json:"page"`
	Size   int    `json:"size"`
	Sort   string `json:"sort,omitempty"`
	Filter string `json:"filter,omitempty"`
	Search string `json:"search,omitempty"`
}
