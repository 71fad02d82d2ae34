package main

import (
	"log"
	"os"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/user"
	emailsvc "github.com/trezcool/maktaba/services/email"
	"github.com/trezcool/maktaba/storage/database"
	"github.com/trezcool/maktaba/storage/database/sqlxrepos"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		usrSvc:  user.NewService(usrRepo, emailsvc.NewConsoleService()),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
