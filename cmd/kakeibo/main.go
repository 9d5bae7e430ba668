// Command kakeibo records income and expenses and reports balances and
// category breakdowns from the synchronized ledger.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
