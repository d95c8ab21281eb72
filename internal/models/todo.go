package models

import "time"

// Todo is a single item owned by exactly one user.
type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TodoRequest is the JSON body for POST /api/v1/todos and PUT /api/v1/todos/{id}.
type TodoRequest struct {
	Title       string `json:"title"       validate:"notblank,min=3,max=50"`
	Description string `json:"description" validate:"notblank,min=3,max=255"`
}

// PageRequest selects one zero-based page of todos ordered by id.
type PageRequest struct {
	Page int
	Size int
	Desc bool
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// TodoPage is the paginated list returned by GET /api/v1/todos.
type TodoPage struct {
	Content     []Todo `json:"content"`
	Page        int    `json:"page"`
	Size        int    `json:"size"`
	Total       int64  `json:"total"`
	TotalPages  int    `json:"totalPages"`
	HasNext     bool   `json:"hasNext"`
	HasPrevious bool   `json:"hasPrevious"`
}

// NewTodoPage wraps one page of items with the metadata derived from total.
func NewTodoPage(items []Todo, req PageRequest, total int64) *TodoPage {
	if items == nil {
		items = []Todo{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return &TodoPage{
		Content:     items,
		Page:        req.Page,
		Size:        req.Size,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     req.Page+1 < totalPages,
		HasPrevious: req.Page > 0,
	}
}
