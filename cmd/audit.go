package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/KotFed0t/finance_simulator/data"
	"github.com/KotFed0t/finance_simulator/data/repository/postgres"
	"github.com/KotFed0t/finance_simulator/internal/service/ledgerService"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/google/subcommands"
)

type auditCmd struct{}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "check every cash balance against the transaction history" }
func (*auditCmd) Usage() string {
	return `audit

  Prints every account whose cash differs from initial cash - bought + sold
  and exits with a failure status if there is any.
`
}

func (*auditCmd) SetFlags(*flag.FlagSet) {}

func (*auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)
	ctx = utils.WithRequestID(ctx, "")

	db := data.NewPostgresClientNoMigrate(cfg)
	defer db.Close()

	// audit reads only the ledger tables
	ledgerSrv := ledgerService.New(postgres.NewPostgres(db), nil, nil, nil)

	discrepancies, err := ledgerSrv.Audit(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	for _, d := range discrepancies {
		fmt.Printf("%d\t%s\tcash %s\texpected %s\n", d.UserID, d.Username, utils.USD(d.Cash), utils.USD(d.Expected()))
	}
	if len(discrepancies) > 0 {
		return subcommands.ExitFailure
	}

	fmt.Println("ledger reconciled")
	return subcommands.ExitSuccess
}
