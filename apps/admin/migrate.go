package main

import (
	"database/sql"

	"github.com/trezcool/maktaba/storage/database"
)

var gooseRunFunc = func(command string, db *sql.DB, args ...string) error { // mockable
	return database.RunGoose(db, command, args...)
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, arguments...)
}
