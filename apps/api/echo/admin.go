package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core/course"
)

type adminApi struct {
	courseSvc *course.Service
	validate  *validator.Validate
}

func registerAdminAPI(g *echo.Group, auth echo.MiddlewareFunc, courseSvc *course.Service, validate *validator.Validate) {
	api := adminApi{courseSvc: courseSvc, validate: validate}

	ag := g.Group("/admin", auth, adminMiddleware())
	ag.GET("/courses", api.queryCourses)
	ag.POST("/courses", api.createCourse)

	dg := ag.Group("/courses/:id")
	dg.GET("", api.retrieveCourse)
	dg.PUT("", api.updateCourse)
	dg.DELETE("", api.destroyCourse)
}

// Handlers

func (api *adminApi) queryCourses(ctx echo.Context) error {
	var q CourseQuery
	courses, err := api.courseSvc.Query(ctx.Request().Context(), q.Bind(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courseSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) retrieveCourse(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	reqCtx := ctx.Request().Context()

	c, err := api.courseSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	questions, err := api.courseSvc.Questions(reqCtx, sess.Viewer(), c.ID)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, AdminCourseResponse{Course: c, Questions: questions})
}

func (api *adminApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courseSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) destroyCourse(ctx echo.Context) error {
	if err := api.courseSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type AdminCourseResponse struct {
	Course    course.Course     `json:"course"`
	Questions []course.Question `json:"questions"`
}
