package echoapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/answer"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/session"
	"github.com/Bigestdave/LCUPrep/core/user"
)

const (
	noticeInvalidLink    = "Invalid link"
	noticeAccessDenied   = "Access denied"
	noticeCourseNotFound = "Course not found"
)

// views answer the client routes: a guard either redirects (302 with the target in the
// Location header and the body) or the handler returns the view model.
type views struct {
	courseSvc       *course.Service
	frontendBaseURL string
}

func registerViews(app *echo.Echo, auth echo.MiddlewareFunc, conf *core.Config, courseSvc *course.Service) {
	v := views{courseSvc: courseSvc, frontendBaseURL: conf.FrontendBaseURL}

	app.GET("/", v.guestOnly(v.landing), auth)
	app.GET("/login", v.guestOnly(v.login), auth)
	app.GET("/signup", v.guestOnly(v.signup), auth)
	app.GET("/forgot-password", v.forgotPassword, auth)
	app.GET("/reset-password", v.resetPassword, auth)

	app.GET("/dashboard", v.protected(v.dashboard), auth)
	app.GET("/library", v.protected(v.library), auth)
	app.GET("/profile", v.protected(v.profile), auth)
	app.GET("/course/:id", v.protected(v.course), auth)
	app.GET("/course/:id/answer/:questionIndex", v.protected(v.answer), auth)
	app.GET("/admin", v.protected(v.admin), auth)
}

type (
	RedirectResponse struct {
		Redirect string `json:"redirect"`
		Notice   string `json:"notice,omitempty"`
	}

	sessionHandler func(ctx echo.Context, sess *session.Session) error
)

func redirect(ctx echo.Context, to, notice string) error {
	ctx.Response().Header().Set(echo.HeaderLocation, to)
	return ctx.JSON(http.StatusFound, RedirectResponse{Redirect: to, Notice: notice})
}

func coursePath(courseID string) string {
	return "/course/" + url.PathEscape(courseID)
}

func answerPath(courseID string, idx int) string {
	return coursePath(courseID) + "/answer/" + strconv.Itoa(idx)
}

// Guards

func (v views) guestOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := getContextSession(ctx); err == nil {
			return redirect(ctx, "/dashboard", "")
		}
		return next(ctx)
	}
}

func (v views) protected(next sessionHandler) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := getContextSession(ctx)
		if err != nil {
			return redirect(ctx, "/login", "")
		}
		return next(ctx, sess)
	}
}

// Public views

func (v views) landing(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"view": "landing"})
}

func (v views) login(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"view": "login"})
}

func (v views) signup(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SignupView{View: "signup", Faculties: user.Faculties, Levels: user.Levels})
}

func (v views) forgotPassword(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"view": "forgot-password"})
}

// resetPassword expects the uid & token of the reset link, forwarded from its fragment.
func (v views) resetPassword(ctx echo.Context) error {
	uid, token := ctx.QueryParam("uid"), ctx.QueryParam("token")
	if uid == "" || token == "" {
		return redirect(ctx, "/forgot-password", noticeInvalidLink)
	}
	return ctx.JSON(http.StatusOK, ResetPasswordView{View: "reset-password", UID: uid, Token: token})
}

// Protected views

func (v views) dashboard(ctx echo.Context, sess *session.Session) error {
	reqCtx := ctx.Request().Context()

	courses, matched, err := v.courseSvc.ForProfile(reqCtx, sess.Faculty(), sess.Level())
	if err != nil {
		return errors.Wrap(err, "listing profile courses")
	}
	cards, err := v.courseCards(ctx, sess, courses)
	if err != nil {
		return err
	}

	welcome := "Welcome back!"
	if name := sess.FirstName(); name != "" {
		welcome = fmt.Sprintf("Welcome back, %s!", name)
	}
	return ctx.JSON(http.StatusOK, DashboardView{
		View:    "dashboard",
		Welcome: welcome,
		Faculty: sess.Faculty(),
		Level:   sess.Level(),
		Matched: matched,
		Courses: cards,
	})
}

func (v views) library(ctx echo.Context, sess *session.Session) error {
	courses, err := v.courseSvc.ByIDs(ctx.Request().Context(), sess.Entitlements())
	if err != nil {
		return errors.Wrap(err, "listing owned courses")
	}
	cards, err := v.courseCards(ctx, sess, courses)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LibraryView{View: "library", Courses: cards})
}

func (v views) profile(ctx echo.Context, sess *session.Session) error {
	courses, err := v.courseSvc.ByIDs(ctx.Request().Context(), sess.Entitlements())
	if err != nil {
		return errors.Wrap(err, "listing owned courses")
	}
	return ctx.JSON(http.StatusOK, ProfileView{
		View:         "profile",
		Email:        sess.User.Email,
		FullName:     sess.FullName(),
		Faculty:      sess.Faculty(),
		Level:        sess.Level(),
		ReferralLink: v.frontendBaseURL + "?ref=" + url.QueryEscape(sess.User.ID),
		Purchases:    courses,
	})
}

func (v views) course(ctx echo.Context, sess *session.Session) error {
	reqCtx := ctx.Request().Context()
	c, err := v.courseSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return redirect(ctx, "/dashboard", noticeCourseNotFound)
		}
		return errors.Wrap(err, "getting course")
	}

	questions, err := v.courseSvc.Questions(reqCtx, sess.Viewer(), c.ID)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	count, err := v.courseSvc.CountQuestions(reqCtx, c.ID)
	if err != nil {
		return errors.Wrap(err, "counting questions")
	}

	fullAccess := hasFullAccess(sess, c.ID)
	items := make([]QuestionItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, QuestionItem{
			Index:        q.Index,
			QuestionText: q.QuestionText,
			Unlocked:     fullAccess || sess.Unlocked(c.ID, q.Index),
			FreePreview:  q.Index == 0 && !fullAccess,
			Href:         answerPath(c.ID, q.Index),
		})
	}
	display := course.DisplayCount(fullAccess, len(questions), count)

	res := CourseView{
		View:          "course",
		Course:        c,
		Owned:         sess.Owns(c.ID),
		FullAccess:    fullAccess,
		Questions:     items,
		QuestionCount: display,
	}
	if !fullAccess {
		res.LockedPlaceholders = display - len(questions)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (v views) answer(ctx echo.Context, sess *session.Session) error {
	reqCtx := ctx.Request().Context()
	c, err := v.courseSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return redirect(ctx, "/dashboard", noticeCourseNotFound)
		}
		return errors.Wrap(err, "getting course")
	}

	idx, err := strconv.Atoi(ctx.Param("questionIndex"))
	if err != nil || idx < 0 {
		return redirect(ctx, coursePath(c.ID), "")
	}
	fullAccess := hasFullAccess(sess, c.ID)
	if !fullAccess && idx > 0 {
		return redirect(ctx, coursePath(c.ID), "")
	}

	q, err := v.courseSvc.Question(reqCtx, sess.Viewer(), c.ID, idx)
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrNotFound, course.ErrLocked:
			return redirect(ctx, coursePath(c.ID), "")
		}
		return errors.Wrap(err, "getting question")
	}
	count, err := v.courseSvc.CountQuestions(reqCtx, c.ID)
	if err != nil {
		return errors.Wrap(err, "counting questions")
	}
	total := count

	return ctx.JSON(http.StatusOK, AnswerView{
		View:         "answer",
		Course:       c,
		Index:        q.Index,
		Position:     fmt.Sprintf("Question %d of %d", q.Index+1, total),
		QuestionText: q.QuestionText,
		Answer:       answer.Blocks(q.AnswerText),
		FreePreview:  q.Index == 0 && !fullAccess,
		Previous:     previousNav(c.ID, q.Index, fullAccess),
		Next:         nextNav(c.ID, q.Index, total, fullAccess),
		Watermark:    sess.Watermark(),
	})
}

func previousNav(courseID string, idx int, owned bool) Nav {
	if idx > 0 && owned {
		return Nav{Enabled: true, Label: "Previous", Href: answerPath(courseID, idx-1)}
	}
	return Nav{Label: "Previous"}
}

func nextNav(courseID string, idx, total int, owned bool) Nav {
	hasNext := idx < total-1
	switch {
	case hasNext && owned:
		return Nav{Enabled: true, Label: "Next", Href: answerPath(courseID, idx+1)}
	case hasNext:
		return Nav{Label: "Unlock to continue", Href: coursePath(courseID)}
	default:
		return Nav{Enabled: true, Label: "Back to questions", Href: coursePath(courseID)}
	}
}

func (v views) admin(ctx echo.Context, sess *session.Session) error {
	if !sess.User.IsAdmin {
		return redirect(ctx, "/dashboard", noticeAccessDenied)
	}
	courses, err := v.courseSvc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	cards, err := v.courseCards(ctx, sess, courses)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, AdminView{View: "admin", Courses: cards})
}

// courseCards pairs courses with their question counts, fetched concurrently.
func (v views) courseCards(ctx echo.Context, sess *session.Session, courses []course.Course) ([]CourseCard, error) {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	counts, err := v.courseSvc.CountQuestionsFor(ctx.Request().Context(), ids)
	if err != nil {
		return nil, errors.Wrap(err, "counting questions")
	}

	cards := make([]CourseCard, 0, len(courses))
	for _, c := range courses {
		cards = append(cards, CourseCard{
			Course:        c,
			Owned:         sess.Owns(c.ID),
			QuestionCount: counts[c.ID],
			Href:          coursePath(c.ID),
		})
	}
	return cards, nil
}

type (
	SignupView struct {
		View      string   `json:"view"`
		Faculties []string `json:"faculties"`
		Levels    []string `json:"levels"`
	}

	ResetPasswordView struct {
		View  string `json:"view"`
		UID   string `json:"uid"`
		Token string `json:"token"`
	}

	CourseCard struct {
		Course        course.Course `json:"course"`
		Owned         bool          `json:"owned"`
		QuestionCount int           `json:"question_count"`
		Href          string        `json:"href"`
	}

	DashboardView struct {
		View    string       `json:"view"`
		Welcome string       `json:"welcome"`
		Faculty string       `json:"faculty"`
		Level   string       `json:"level"`
		Matched bool         `json:"matched"`
		Courses []CourseCard `json:"courses"`
	}

	LibraryView struct {
		View    string       `json:"view"`
		Courses []CourseCard `json:"courses"`
	}

	ProfileView struct {
		View         string          `json:"view"`
		Email        string          `json:"email"`
		FullName     string          `json:"full_name"`
		Faculty      string          `json:"faculty"`
		Level        string          `json:"level"`
		ReferralLink string          `json:"referral_link"`
		Purchases    []course.Course `json:"purchases"`
	}

	QuestionItem struct {
		Index        int    `json:"question_index"`
		QuestionText string `json:"question_text"`
		Unlocked     bool   `json:"unlocked"`
		FreePreview  bool   `json:"free_preview"`
		Href         string `json:"href"`
	}

	CourseView struct {
		View               string         `json:"view"`
		Course             course.Course  `json:"course"`
		Owned              bool           `json:"owned"`
		FullAccess         bool           `json:"full_access"`
		Questions          []QuestionItem `json:"questions"`
		QuestionCount      int            `json:"question_count"`
		LockedPlaceholders int            `json:"locked_placeholders"`
	}

	Nav struct {
		Enabled bool   `json:"enabled"`
		Label   string `json:"label"`
		Href    string `json:"href,omitempty"`
	}

	AnswerView struct {
		View         string         `json:"view"`
		Course       course.Course  `json:"course"`
		Index        int            `json:"question_index"`
		Position     string         `json:"position"`
		QuestionText string         `json:"question_text"`
		Answer       []answer.Block `json:"answer"`
		FreePreview  bool           `json:"free_preview"`
		Previous     Nav            `json:"previous"`
		Next         Nav            `json:"next"`
		Watermark    string         `json:"watermark"`
	}

	AdminView struct {
		View    string       `json:"view"`
		Courses []CourseCard `json:"courses"`
	}
)
