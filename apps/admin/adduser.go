package main

import (
	"context"
	"fmt"

	"github.com/trezcool/qsnap/core/account"
)

// addUser creates an account, or overwrites the password of an existing one.
func (cli *commandLine) addUser(id, role, grade, pwd string) error {
	na := account.NewAccount{ID: id, Password: pwd, Role: role, Grade: grade}
	if err := na.Validate(cli.validate); err != nil {
		return err
	}
	acc, err := cli.accSvc.Register(context.Background(), na)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s %q saved\n", acc.Role, acc.ID)
	return nil
}

func (cli *commandLine) deleteUser(id string) error {
	if err := cli.accSvc.Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "account %q deleted\n", id)
	return nil
}
