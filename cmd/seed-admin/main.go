// seed-admin bootstraps a tenant with an Admin user so a fresh install can
// log in. Existing usernames are left alone.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin -owner "My Store" -email admin@store.example \
//	  -username admin -password 'change-me-now'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"gorm.io/gorm"
)

func main() {
	ownerName := flag.String("owner", "", "owner (tenant) name")
	email := flag.String("email", "", "owner and admin email")
	username := flag.String("username", "admin", "admin username")
	name := flag.String("name", "Administrator", "admin display name")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *ownerName == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-owner, -email and -password are required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", *username).First(&existing).Error
	if err == nil {
		fmt.Printf("user %q already exists (id=%d, owner=%s); nothing to do\n", *username, existing.ID, existing.OwnerId)
		return
	}
	if err != gorm.ErrRecordNotFound {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}

	owner, err := models.CreateOwner(ctx, &models.NewOwner{
		Name:  *ownerName,
		Email: *email,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create owner: %v\n", err)
		os.Exit(1)
	}

	user, err := models.CreateUser(ctx, &models.NewUser{
		OwnerId:  owner.ID.String(),
		Username: *username,
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     models.AdminRoleName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created owner %s (%s) with admin user %q (id=%d)\n", owner.Name, owner.ID, user.Username, user.ID)
}
