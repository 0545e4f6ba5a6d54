// Command adminctl produces and checks values for STATION_ADMIN_PASSWORD_HASH.
//
//	adminctl hash-password < password.txt
//	adminctl verify-password < password.txt
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/security"
)

const usage = "usage: adminctl <hash-password|verify-password>  (password is read from stdin)"

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New(usage)
	}

	var pw config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &pw); err != nil {
		return fmt.Errorf("parsing password config: %w", err)
	}

	password, err := readPassword(stdin)
	if err != nil {
		return err
	}

	switch args[0] {
	case "hash-password":
		hash, err := security.HashPassword(password, pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, hash)
		return nil
	case "verify-password":
		encoded := strings.TrimSpace(os.Getenv("STATION_ADMIN_PASSWORD_HASH"))
		if encoded == "" {
			return errors.New("STATION_ADMIN_PASSWORD_HASH is not set")
		}
		ok, err := security.VerifyPassword(password, encoded)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("password does not match")
		}
		if security.NeedsRehash(encoded, pw) {
			fmt.Fprintln(stdout, "match (hash is weaker than the configured argon2 params, consider regenerating)")
			return nil
		}
		fmt.Fprintln(stdout, "match")
		return nil
	default:
		return errors.New(usage)
	}
}

// readPassword takes the first line of stdin without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
