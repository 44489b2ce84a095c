package main

import (
	"context"
	"time"

	"github.com/trezcool/qsnap/core/account"
)

func (cli *commandLine) report(month string) error {
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	rows, err := cli.accSvc.UsageReport(context.Background(), month)
	if err != nil {
		return err
	}
	return account.WriteCSV(cli.out, rows)
}
