package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/database"
	"github.com/mybizz/mybizz/internal/pkg/env"
	"github.com/mybizz/mybizz/internal/pkg/vault"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	database.SetupDatabase()
	repos := repository.NewRepositories(database.GetDB())
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "create-admin":
		requireArgs(4)
		name := ""
		if len(os.Args) > 4 {
			name = strings.Join(os.Args[4:], " ")
		}
		err = createAdmin(ctx, repos.User, os.Args[2], os.Args[3], name)
	case "issue-api-key":
		requireArgs(3)
		err = issueAPIKey(ctx, repos.User, os.Args[2])
	case "revoke-api-key":
		requireArgs(3)
		err = revokeAPIKey(ctx, repos.User, os.Args[2])
	case "set-secret":
		requireArgs(4)
		err = withStore(repos.Vault, func(s *vault.Store) error {
			if err := s.SetSecret(ctx, os.Args[2], os.Args[3]); err != nil {
				return err
			}
			log.Printf("Secret %s stored", os.Args[2])
			return nil
		})
	case "delete-secret":
		requireArgs(3)
		err = withStore(repos.Vault, func(s *vault.Store) error {
			if err := s.DeleteSecret(ctx, os.Args[2]); err != nil {
				return err
			}
			log.Printf("Secret %s deleted", os.Args[2])
			return nil
		})
	case "list-secrets":
		err = withStore(repos.Vault, func(s *vault.Store) error {
			names, err := s.Names(ctx)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				log.Println("No secrets stored")
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		})
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func createAdmin(ctx context.Context, users repository.UserRepository, email, password, name string) error {
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("user %s already exists", email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if name == "" {
		name = email
	}
	u, err := models.CreateAdmin(name, email, password)
	if err != nil {
		return err
	}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	log.Printf("Admin %s created (id %d)", u.Email, u.ID)
	return nil
}

// issueAPIKey rotates the key of an admin and prints the raw value once.
func issueAPIKey(ctx context.Context, users repository.UserRepository, email string) error {
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !u.IsAdmin() {
		return fmt.Errorf("user %s is not an admin", email)
	}
	key, err := users.GetOrCreateAPIKey(ctx, u.ID)
	if err != nil {
		return err
	}
	raw, err := key.Issue()
	if err != nil {
		return err
	}
	if err := users.SaveAPIKey(ctx, key); err != nil {
		return err
	}
	fmt.Println(raw)
	log.Printf("API key issued for %s (prefix %s). It is shown only once.", u.Email, key.KeyPrefix)
	return nil
}

func revokeAPIKey(ctx context.Context, users repository.UserRepository, email string) error {
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	key, err := users.GetOrCreateAPIKey(ctx, u.ID)
	if err != nil {
		return err
	}
	if !key.IsActive() {
		log.Printf("User %s has no active API key", u.Email)
		return nil
	}
	key.Revoke()
	if err := users.SaveAPIKey(ctx, key); err != nil {
		return err
	}
	log.Printf("API key of %s revoked", u.Email)
	return nil
}

func withStore(repo repository.VaultRepository, fn func(s *vault.Store) error) error {
	store, err := vault.NewStore(repo, env.GetEnv("VAULT_MASTER_KEY", ""))
	if err != nil {
		return err
	}
	return fn(store)
}

func requireArgs(n int) {
	if len(os.Args) < n {
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/admin/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  create-admin EMAIL PASSWORD [NAME]  - create an admin account")
	fmt.Println("  issue-api-key EMAIL                 - issue a new admin API key")
	fmt.Println("  revoke-api-key EMAIL                - revoke the admin API key")
	fmt.Println("  set-secret NAME VALUE               - store a tenant secret in the vault")
	fmt.Println("  delete-secret NAME                  - remove a tenant secret")
	fmt.Println("  list-secrets                        - list stored secret names")
}
