package main

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/qsnap/core/account"
)

func (cli *commandLine) resetPassword(id, pwd string) error {
	rp := account.ResetPassword{ID: id, Password: pwd}
	if err := rp.Validate(cli.validate); err != nil {
		return err
	}
	return cli.accSvc.ResetPassword(context.Background(), rp)
}

// hashSecret prints the bcrypt hash to configure as the administrative override password.
func (cli *commandLine) hashSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "<ENV>_ADMIN_OVERRIDESECRETHASH=%s\n", hash)
	return nil
}
