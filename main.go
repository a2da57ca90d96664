package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron"

	"github.com/bcaldwell/bookops/internal/tasks"
	"github.com/bcaldwell/bookops/pkg/config"
)

const configEnvVar = "BOOKOPS_CONFIG"

type Runner interface {
	Run() error
}

var runner Runner

func main() {
	singleRun := flag.Bool("single-run", false, "run task once (disable cron)")
	configFile := flag.String("config", "./config.yml", "configuration file")
	secretsFile := flag.String("secrets", "./secrets.json", "secrets file")
	importFile := flag.String("file", "", "statement file to import")
	importFormat := flag.String("format", "", "statement file format (paypal-csv or ofx)")
	cashBook := flag.String("cash-book", "", "cash book to import into")
	creator := flag.String("creator", "importer", "name recorded as the creator of imported transactions")
	startDate := flag.String("start-date", "", "only import transactions on or after this date (yyyy-mm-dd)")
	endDate := flag.String("end-date", "", "only import transactions on or before this date (yyyy-mm-dd)")
	help := flag.Bool("help", false, "show command help")

	flag.Parse()

	if *help {
		fmt.Println("nonprofit bookkeeping jobs")
		fmt.Println("bookops [options] task")
		fmt.Println("tasks: import, categorize, seed-rules, create-fees, set-due-fees, match-fees, summary, cron")
		flag.PrintDefaults()
		return
	}

	err := config.ReadConfig(configEnvVar, *configFile, *secretsFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		fmt.Println("No task passed in")
		return
	}

	switch flag.Arg(0) {
	case "import":
		runner = tasks.ImportRunner{
			File:      *importFile,
			Format:    *importFormat,
			CashBook:  *cashBook,
			Creator:   *creator,
			StartDate: *startDate,
			EndDate:   *endDate,
		}
	case "categorize":
		runner = tasks.CategorizeRunner{}
	case "seed-rules":
		runner = tasks.SeedRulesRunner{}
	case "create-fees":
		runner = tasks.CreateFeesRunner{}
	case "set-due-fees":
		runner = tasks.SetDueFeesRunner{}
	case "match-fees":
		runner = tasks.MatchFeesRunner{}
	case "summary":
		runner = tasks.SummaryRunner{}
	case "cron":
		runner = tasks.CronRunner{}
	default:
		fmt.Println("No task passed in")
		return
	}

	run()

	// import and seed-rules are one shot
	if *singleRun || flag.Arg(0) == "import" || flag.Arg(0) == "seed-rules" {
		return
	}

	c := cron.New()
	c.AddFunc(config.CurrentConfig().UpdateFrequency, run)

	c.Start()

	select {}

}

func run() {
	fmt.Println(time.Now().Format(time.RFC850))
	err := runner.Run()
	if err != nil {
		fmt.Println(err)
	}
}
