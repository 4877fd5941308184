package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/af-corp/chat-gateway/internal/auth"
	"github.com/af-corp/chat-gateway/internal/types"
	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	org := flag.String("org", "", "organization ID (required)")
	team := flag.String("team", "", "team ID (required)")
	user := flag.String("user", "", "user ID (optional, omit for service accounts)")
	name := flag.String("name", "", "human-friendly key name (required)")
	env := flag.String("env", "prod", "environment prefix")
	models := flag.String("models", "", "comma-separated allowed model ids (empty = all)")
	tools := flag.String("tools", "", "comma-separated allowed tools: web_search, image_generation, code_interpreter (empty = all)")
	rpm := flag.Int("rpm", 0, "per-key requests per minute (0 = gateway default)")
	expires := flag.String("expires", "365d", "expiry duration (e.g., 365d, 720h)")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if *org == "" || *team == "" || *name == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -org, -team, and -name are required")
		os.Exit(1)
	}

	rawKey, err := auth.GenerateKey(*env)
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}
	keyHash := auth.HashKey(rawKey)
	keyPrefix := auth.KeyPrefix(rawKey)

	dur, err := auth.ParseDuration(*expires)
	if err != nil {
		log.Fatalf("invalid expires: %v", err)
	}
	expiresAt := time.Now().Add(dur)

	toolList := splitList(*tools)
	if err := checkTools(toolList); err != nil {
		log.Fatalf("invalid -tools: %v", err)
	}
	allowedModels, _ := json.Marshal(splitList(*models))
	allowedTools, _ := json.Marshal(toolList)
	var rpmLimit *int
	if *rpm > 0 {
		rpmLimit = rpm
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL(*dbURL))
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	var keyID string
	err = conn.QueryRow(ctx, `
		INSERT INTO api_keys (key_hash, key_prefix, organization_id, team_id, user_id, name, allowed_models, allowed_tools, rpm_limit, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, keyHash, keyPrefix, *org, *team, nilIfEmpty(*user), *name, allowedModels, allowedTools, rpmLimit, expiresAt).Scan(&keyID)
	if err != nil {
		log.Fatalf("failed to insert key: %v", err)
	}

	fmt.Println("=== Chat Gateway API Key ===")
	fmt.Println()
	fmt.Printf("  Key ID:         %s\n", keyID)
	fmt.Printf("  Key Prefix:     %s\n", keyPrefix)
	fmt.Printf("  Organization:   %s\n", *org)
	fmt.Printf("  Team:           %s\n", *team)
	if *user != "" {
		fmt.Printf("  User:           %s\n", *user)
	}
	if *models != "" {
		fmt.Printf("  Models:         %s\n", *models)
	}
	if *tools != "" {
		fmt.Printf("  Tools:          %s\n", *tools)
	}
	fmt.Printf("  Expires:        %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  API Key (save this, it will NOT be shown again):")
	fmt.Printf("  %s\n", rawKey)
	fmt.Println()
	fmt.Println("============================")
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// checkTools rejects grants for tools the gateway does not know, which
// would otherwise silently never match.
func checkTools(tools []string) error {
	for _, t := range tools {
		if t != "*" && !slices.Contains(types.KnownTools, t) {
			return fmt.Errorf("unknown tool %q (known: %s)", t, strings.Join(types.KnownTools, ", "))
		}
	}
	return nil
}

func databaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envOrDefault("DB_USER", "chatgw"),
		envOrDefault("DB_PASSWORD", "chatgw-dev"),
		envOrDefault("DB_HOST", "localhost"),
		envOrDefault("DB_PORT", "5432"),
		envOrDefault("DB_NAME", "chatgw"),
	)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
