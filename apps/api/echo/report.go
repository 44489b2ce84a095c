package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core/account"
)

type reportApi struct {
	svc *account.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *reportApi) {
	rg := g.Group("/reports", jwt, adminMiddleware())
	rg.GET("/usage", api.usage)
}

// usage exports the balances and answer counts for `month` (YYYY-MM, current month by default), as JSON or CSV.
func (api *reportApi) usage(ctx echo.Context) error {
	month := ctx.QueryParam("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}

	rows, err := api.svc.UsageReport(ctx.Request().Context(), month)
	if err != nil {
		return errors.Wrap(err, "building usage report")
	}

	if ctx.QueryParam("format") != "csv" {
		return ctx.JSON(http.StatusOK, rows)
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=usage-%s.csv", month))
	res.WriteHeader(http.StatusOK)
	return account.WriteCSV(res, rows)
}
