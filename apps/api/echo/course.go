package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Bigestdave/LCUPrep/core/answer"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/session"
)

type courseApi struct {
	svc        *course.Service
	paymentSvc *payment.Service
}

func registerCourseAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *course.Service, paymentSvc *payment.Service) {
	api := courseApi{svc: svc, paymentSvc: paymentSvc}

	cg := g.Group("/courses", auth)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/questions", api.questions)
	cg.GET("/:id/questions/:index", api.question)
	cg.POST("/:id/checkout", api.checkout)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	var q CourseQuery
	courses, err := api.svc.Query(ctx.Request().Context(), q.Bind(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	reqCtx := ctx.Request().Context()

	c, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	var (
		count     int
		questions []course.Question
	)
	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() (err error) {
		count, err = api.svc.CountQuestions(gctx, c.ID)
		return errors.Wrap(err, "counting questions")
	})
	g.Go(func() (err error) {
		questions, err = api.svc.Questions(gctx, sess.Viewer(), c.ID)
		return errors.Wrap(err, "listing questions")
	})
	if err = g.Wait(); err != nil {
		return err
	}

	owned := sess.Owns(c.ID)
	return ctx.JSON(http.StatusOK, CourseDetailResponse{
		Course:        c,
		Owned:         owned,
		FullAccess:    hasFullAccess(sess, c.ID),
		QuestionCount: count,
		VisibleCount:  len(questions),
		DisplayCount:  course.DisplayCount(hasFullAccess(sess, c.ID), len(questions), count),
	})
}

func (api *courseApi) questions(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	reqCtx := ctx.Request().Context()

	c, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	questions, err := api.svc.Questions(reqCtx, sess.Viewer(), c.ID)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *courseApi) question(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	idx, err := strconv.Atoi(ctx.Param("index"))
	if err != nil || idx < 0 {
		return errHttpNotFound
	}
	reqCtx := ctx.Request().Context()

	c, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	q, err := api.svc.Question(reqCtx, sess.Viewer(), c.ID, idx)
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	count, err := api.svc.CountQuestions(reqCtx, c.ID)
	if err != nil {
		return errors.Wrap(err, "counting questions")
	}

	return ctx.JSON(http.StatusOK, QuestionResponse{
		Question:    q,
		Answer:      answer.Blocks(q.AnswerText),
		Total:       count,
		FreePreview: q.Index == 0 && !hasFullAccess(sess, c.ID),
	})
}

func (api *courseApi) checkout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if sess.Owns(c.ID) {
		return errAlreadyOwned
	}
	return ctx.JSON(http.StatusOK, api.paymentSvc.Checkout(c, sess.User.Email))
}

// hasFullAccess reports whether every question of a course is readable by the session:
// owners and admins.
func hasFullAccess(sess *session.Session, courseID string) bool {
	return sess.User.IsAdmin || sess.Owns(courseID)
}

type (
	CourseDetailResponse struct {
		Course        course.Course `json:"course"`
		Owned         bool          `json:"owned"`
		FullAccess    bool          `json:"full_access"`
		QuestionCount int           `json:"question_count"`
		VisibleCount  int           `json:"visible_count"`
		DisplayCount  int           `json:"display_count"`
	}

	QuestionResponse struct {
		Question    course.Question `json:"question"`
		Answer      []answer.Block  `json:"answer"`
		Total       int             `json:"total"`
		FreePreview bool            `json:"free_preview"`
	}
)
