package httpx

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// MaxPage bounds page numbers so offsets stay well inside int range.
const MaxPage = 10000

// PageQuery is embedded in list request structs.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1,max=10000"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Normalize fills defaults and returns (limit, offset).
func (p *PageQuery) Normalize(defLimit int) (int, int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = defLimit
	}
	return p.Limit, (p.Page - 1) * p.Limit
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// ParamID parses a positive int64 path parameter, answering 400 otherwise.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		Fail(c, http.StatusBadRequest, "Validation failed", []FieldError{{Field: name, Message: "must be a valid id"}})
		return 0, false
	}
	return id, true
}
