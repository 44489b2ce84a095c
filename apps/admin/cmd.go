package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/storage/database"
)

var (
	// mockable
	readPasswordFunc = term.ReadPassword
	gooseRunFunc     = database.RunMigrations

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations need a postgres database")
)

type commandLine struct {
	accSvc   *account.Service
	validate *validator.Validate
	db       *sql.DB // nil when the store is in memory
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -id ID -role student|tutor|admin [-grade GRADE] - create an account or overwrite its password")
	fmt.Fprintln(cli.out, "  resetpassword -id ID - reset an account's password")
	fmt.Fprintln(cli.out, "  deleteuser -id ID - delete an account's credential")
	fmt.Fprintln(cli.out, "  report [-month YYYY-MM] - export the usage report as CSV")
	fmt.Fprintln(cli.out, "  hashsecret - hash a new administrative override password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status...)")
}

// promptPassword reads a password from the terminal; errHelp if none was typed.
func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserID := addUserCmd.String("id", "", "The account id. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", "", "The account role: student, tutor or admin.")
	addUserGrade := addUserCmd.String("grade", "", "The student's grade or the tutor's subject.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordID := resetPasswordCmd.String("id", "", "The account id. The password will be prompted next.")

	deleteUserCmd := flag.NewFlagSet("deleteuser", flag.ContinueOnError)
	deleteUserID := deleteUserCmd.String("id", "", "The account id.")

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportMonth := reportCmd.String("month", "", "The report month (YYYY-MM); the current month by default.")

	hashSecretCmd := flag.NewFlagSet("hashsecret", flag.ContinueOnError)

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, deleteUserCmd, reportCmd, hashSecretCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserID == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserID, *addUserRole, *addUserGrade, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordID == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordID, pwd)

	case "deleteuser":
		if err := deleteUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *deleteUserID == "" {
			deleteUserCmd.Usage()
			return errHelp
		}
		return cli.deleteUser(*deleteUserID)

	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.report(*reportMonth)

	case "hashsecret":
		if err := hashSecretCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		pwd, err := cli.promptPassword(hashSecretCmd)
		if err != nil {
			return err
		}
		return cli.hashSecret(pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
