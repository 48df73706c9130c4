package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/immxrtalbeast/supportchat/internal/auth"
	"github.com/immxrtalbeast/supportchat/internal/config"
	"github.com/joho/godotenv"
)

// tokengen mints a staff bearer token signed with the configured secret.
func main() {
	_ = godotenv.Load(".env")

	var staffID, name string
	flag.StringVar(&staffID, "id", "", "staff id")
	flag.StringVar(&name, "name", "", "staff display name")

	cfg := config.MustLoad()

	if staffID == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(2)
	}
	if name == "" {
		name = staffID
	}

	jwt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	token, err := jwt.Issue(staffID, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
