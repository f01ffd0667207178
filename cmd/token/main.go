// Command token prints an access token for a user, signed with the server's
// key. Identity is managed outside this service; the token only carries the
// user id the REST layer scopes data by.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/config"
	"github.com/stickynotes/stickynotes-server/internal/domain"
)

func main() {
	userID := flag.String("user", "", "user id to issue the token for (required)")
	email := flag.String("email", "", "email address carried in the token")
	name := flag.String("name", "", "display name carried in the token")
	keyDir := flag.String("key-path", "", "directory holding the token key (defaults to the server's)")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to the server's)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "token: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	// The server's flags are not ours; read only env and .env.
	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: load config: %v\n", err)
		os.Exit(1)
	}
	if *keyDir == "" {
		*keyDir = cfg.Auth.KeyPath
	}
	if *ttl == 0 {
		*ttl = cfg.Auth.TokenDuration
	}

	key, err := auth.LoadOrGenerateKey(*keyDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	tokens, err := auth.NewTokenService(key, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}

	token, err := tokens.Issue(&domain.User{ID: *userID, Email: *email, DisplayName: *name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
}
