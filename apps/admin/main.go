package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/catalog"
	"github.com/trezcool/kazi/core/staff"
	"github.com/trezcool/kazi/core/user"
	logsvc "github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage/database"
	sqlxrepos "github.com/trezcool/kazi/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()
	logger := logsvc.NewZapLogger(zl.Named("admin"))

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		logger.Fatal("connecting to database", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))

	// start CLI
	cli := &commandLine{
		db:         db,
		validate:   validate,
		translator: translator,
		usrSvc:     usrSvc,
		staffSvc:   staff.NewService(sqlxrepos.NewStaffRepository(db), usrSvc),
		catalogSvc: catalog.NewService(sqlxrepos.NewCatalogRepository(db)),
		out:        os.Stdout,
	}
	if err := cli.run(os.Args[1:]); err != nil {
		logger.Error("admin command failed", err)
		os.Exit(1)
	}
}
