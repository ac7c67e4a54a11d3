/*
main.go - Command-line entry point for the inventory ledger

PURPOSE:
  Opens the local SQLite ledger, wires the ledger and query services over
  the one store, runs a single subcommand and exits.

STARTUP SEQUENCE:
  1. Parse global flags
  2. Load configuration (defaults, inventory.yaml, INVENTORY_* env)
  3. Initialize logger and SQLite store
  4. Dispatch the subcommand

GLOBAL FLAGS:
  -config  Path to a YAML config file (default: ./inventory.yaml if present)
  -db      SQLite database path, overrides db.path

COMMANDS:
  add       -name -qty -price [-desc]
  update    -id [-name] [-qty] [-price] [-desc]
  delete    -id
  receive   -id -qty [-price] [-remark]
  issue     -id -qty -price [-remark]
  products
  search    KEYWORD
  movements [-product ID] [-kind receipt|issue]
  cost      -id
  export    -kind receipt|issue [-out FILE]
  seed      -file catalog.yaml

EXIT CODES:
  0 success, 1 rejected input, 2 usage or storage failure

EXAMPLES:
  inventory add -name Widget -qty 10 -price 5.00
  inventory receive -id <id> -qty 5 -price 7.00 -remark "supplier A"
  INVENTORY_LOCALE_LANGUAGE=de inventory movements -kind issue

SEE ALSO:
  - cmd/inventory/app.go: Command implementations
  - config/config.go: Settings
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
