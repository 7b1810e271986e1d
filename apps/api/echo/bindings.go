package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for field := range strings.SplitSeq(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// CourseQuery filters the catalog on `?faculty=&level=`.
type CourseQuery struct {
	Faculty string `query:"faculty"`
	Level   string `query:"level"`
}

func (q *CourseQuery) Bind(ctx echo.Context) course.ListFilter {
	q.Faculty = core.CleanString(ctx.QueryParam("faculty"))
	q.Level = core.CleanString(ctx.QueryParam("level"))

	ordering := new(Ordering)
	ordering.Bind(ctx)
	return course.ListFilter{Faculty: q.Faculty, Level: q.Level, Ordering: ordering.Orderings}
}
