package account

import (
	"context"
	"encoding/csv"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
)

var (
	monthRegex      = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	errInvalidMonth = errors.New("month must be formatted as YYYY-MM")

	reportHeader = []string{"kind", "account_id", "value", "month"}
)

// ReportRow is one line of the usage report: remaining minutes for students, resolved answers for tutors.
type ReportRow struct {
	Kind      string `json:"kind"`
	AccountID string `json:"account_id"`
	Value     int    `json:"value"`
	Month     string `json:"month"`
}

// UsageReport reads the current balances and answer counts, labelled with `month` (YYYY-MM).
// Students come first, then tutors, each sorted by id.
func (svc *Service) UsageReport(ctx context.Context, month string) ([]ReportRow, error) {
	month = core.CleanString(month)
	if !monthRegex.MatchString(month) {
		return nil, core.NewValidationError(errInvalidMonth, core.FieldError{Field: "month", Error: errInvalidMonth.Error()})
	}

	rows := make([]ReportRow, 0)
	for _, role := range []string{RoleStudent, RoleTutor} {
		accs, err := svc.store.QueryAccounts(ctx, QueryFilter{Role: role})
		if err != nil {
			return nil, errors.Wrap(err, "querying accounts")
		}
		sort.Slice(accs, func(i, j int) bool { return accs[i].ID < accs[j].ID })
		for _, acc := range accs {
			row := ReportRow{Kind: role, AccountID: acc.ID, Month: month}
			if acc.IsStudent() {
				row.Value = acc.Balance()
			} else {
				row.Value = acc.AnswerCount
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// WriteCSV writes the report rows, with a header line, to w.
func WriteCSV(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Kind, row.AccountID, strconv.Itoa(row.Value), row.Month}); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	cw.Flush()
	return cw.Error()
}
