package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/question"
)

const streamEvent = "questions"

type questionApi struct {
	svc      *question.Service
	accSvc   *account.Service
	notifier question.Source
	validate *validator.Validate
	logger   core.Logger
}

func registerQuestionAPI(g *echo.Group, jwt, jwtQuery echo.MiddlewareFunc, api *questionApi) {
	students := roleMiddleware(account.RoleStudent)
	tutors := roleMiddleware(account.RoleTutor)
	viewers := roleMiddleware(account.RoleStudent, account.RoleTutor)

	g.GET("/questions/stream", api.stream, jwtQuery, viewers)

	qg := g.Group("/questions", jwt)
	qg.POST("", api.create, students)
	qg.GET("", api.list, viewers)
	qg.GET("/:id", api.retrieve)
	qg.POST("/:id/claim", api.claim, tutors)
	qg.POST("/:id/confirm", api.confirm, tutors)
	qg.POST("/:id/reply", api.reply, tutors)
	qg.POST("/:id/complete", api.complete, tutors)
	qg.POST("/:id/hide", api.hide, viewers)
	qg.DELETE("/:id", api.destroy, roleMiddleware(account.RoleTutor, account.RoleAdmin))
}

// Handlers

func (api *questionApi) create(ctx echo.Context) error {
	var data question.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	q, err := api.svc.Create(ctx.Request().Context(), acc, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *questionApi) list(ctx echo.Context) error {
	var filter StatusFilter
	if err := filter.Bind(ctx); err != nil {
		return err
	}
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	qs, err := api.svc.List(ctx.Request().Context(), acc, filter.Statuses...)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *questionApi) retrieve(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	q, err := api.svc.Get(ctx.Request().Context(), acc, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) claim(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	q, err := api.svc.Claim(ctx.Request().Context(), acc, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "claiming question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) confirm(ctx echo.Context) error {
	var data ConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	q, err := api.svc.Confirm(ctx.Request().Context(), acc, ctx.Param("id"), data.MeetingURL)
	if err != nil {
		return errors.Wrap(err, "confirming question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) reply(ctx echo.Context) error {
	var data question.Reply
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reply")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	q, err := api.svc.Reply(ctx.Request().Context(), acc, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "replying to question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) complete(ctx echo.Context) error {
	var data CompleteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteRequest")
	}
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	q, err := api.svc.Complete(ctx.Request().Context(), acc, ctx.Param("id"), data.Confirm)
	if err != nil {
		return errors.Wrap(err, "completing question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) hide(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	q, err := api.svc.Hide(ctx.Request().Context(), acc, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "hiding question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) destroy(ctx echo.Context) error {
	var data DeleteQuestionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteQuestionRequest")
	}

	q, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), data.Password)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.JSON(http.StatusOK, q)
}

// stream pushes the viewer's question list as Server-Sent Events, once right away and then on every change.
func (api *questionApi) stream(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	updates, err := api.notifier.Watch(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "watching questions")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	for list := range updates {
		data, err := json.Marshal(list)
		if err != nil {
			api.logger.Error("encoding questions event", err, acc)
			continue
		}
		if _, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", streamEvent, data); err != nil {
			return nil // client gone
		}
		res.Flush()
	}
	return nil
}
