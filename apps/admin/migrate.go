package main

import "context"

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(context.Background(), cli.db, args[0], args[1:]...)
}
