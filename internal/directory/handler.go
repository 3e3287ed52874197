package directory

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DirectoryHandler serves the targeting filter options.
type DirectoryHandler struct {
	repo *Repository
}

func NewDirectoryHandler(repo *Repository) *DirectoryHandler {
	return &DirectoryHandler{repo: repo}
}

func filterFromQuery(c echo.Context) StudentFilter {
	q := c.QueryParams()
	return StudentFilter{
		Departments: q["department"],
		Courses:     q["course"],
		Years:       q["year"],
	}
}

func (h *DirectoryHandler) Years(c echo.Context) error {
	f := filterFromQuery(c)
	f.Years = nil
	years, err := h.repo.DistinctValues(c.Request().Context(), "year", f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, years)
}

func (h *DirectoryHandler) Sections(c echo.Context) error {
	sections, err := h.repo.DistinctValues(c.Request().Context(), "section", filterFromQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sections)
}
