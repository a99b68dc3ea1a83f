// email-outbox-replay requeues FAILED and DEAD email outbox rows so the
// dispatcher retries them, typically after an SMTP outage. Scope to one
// tenant with -owner, or replay everything.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
)

func main() {
	ownerId := flag.String("owner", "", "owner id to scope the replay (empty = all owners)")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	count, err := models.RequeueDeadEmails(ctx, *ownerId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("requeued %d email(s)\n", count)
}
