// Command identityctl is a CLI client for the identity service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/userservice/internal/convert"
)

// ---- session store ----

type sessionFile struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "identityctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "identityctl")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(s sessionFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(sessionPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func loadSession() (sessionFile, error) {
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return sessionFile{}, errors.New("no session (login required)")
	}
	var s sessionFile
	if err := json.Unmarshal(b, &s); err != nil {
		return sessionFile{}, err
	}
	if s.RefreshToken == "" {
		return sessionFile{}, errors.New("no session (login required)")
	}
	return s, nil
}

func clearSession() error {
	if err := os.Remove(sessionPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// accessToken returns a usable access token, refreshing it when it is about to expire.
func accessToken(ctx context.Context, c *client) (string, error) {
	s, err := loadSession()
	if err != nil {
		return "", err
	}
	if s.AccessToken != "" && time.Until(s.ExpiresAt) > 10*time.Second {
		return s.AccessToken, nil
	}
	out, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		return "", err
	}
	s.AccessToken = out.AccessToken
	s.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Millisecond)
	return s.AccessToken, saveSession(s)
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `identityctl
Usage:
  identityctl -addr URL <cmd> [args]

Commands:
  version
  register   -e <email> -p <password> [-first <name>] [-last <name>] [-phone <n>] -accept
  login      -e <email> -p <password>            (saves session)
  refresh                                        (new access token, same refresh token)
  logout                                         (revokes all sessions, clears local)
  me
  assign     -user <uuid> -unit <business unit id>
  unit-name  -id <business unit id>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "service base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c := newClient(*addr, *timeout)

	if err := run(ctx, c, cmd, args); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, c *client, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Printf("identityctl %s (%s)\n", version, buildDate)
		return nil

	case "register":
		fs := flag.NewFlagSet("register", flag.ContinueOnError)
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		first := fs.String("first", "", "first name")
		last := fs.String("last", "", "last name")
		phone := fs.String("phone", "", "phone number")
		accept := fs.Bool("accept", false, "accept the privacy policy")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *e == "" || *p == "" {
			return errors.New("need -e and -p")
		}
		u, err := c.register(ctx, convert.RegisterRequest{
			Email: *e, Password: *p, FirstName: *first, LastName: *last, PhoneNumber: *phone,
			PrivacyPolicyAccepted: *accept,
		})
		if err != nil {
			return err
		}
		printJSON(u)
		return nil

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *e == "" || *p == "" {
			return errors.New("need -e and -p")
		}
		out, err := c.login(ctx, *e, *p)
		if err != nil {
			return err
		}
		err = saveSession(sessionFile{
			AccessToken:  out.AccessToken,
			RefreshToken: out.RefreshToken,
			ExpiresAt:    time.Now().Add(time.Duration(out.ExpiresIn) * time.Millisecond),
		})
		if err != nil {
			return err
		}
		printJSON(out.Principal)
		return nil

	case "refresh":
		s, err := loadSession()
		if err != nil {
			return err
		}
		out, err := c.refresh(ctx, s.RefreshToken)
		if err != nil {
			return err
		}
		s.AccessToken = out.AccessToken
		s.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Millisecond)
		if err := saveSession(s); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "logout":
		tok, err := accessToken(ctx, c)
		if err != nil {
			return err
		}
		if err := c.withBearer(tok).logout(ctx); err != nil {
			return err
		}
		if err := clearSession(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "me":
		tok, err := accessToken(ctx, c)
		if err != nil {
			return err
		}
		u, err := c.withBearer(tok).me(ctx)
		if err != nil {
			return err
		}
		printJSON(u)
		return nil

	case "assign":
		fs := flag.NewFlagSet("assign", flag.ContinueOnError)
		user := fs.String("user", "", "user id")
		unit := fs.String("unit", "", "business unit id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *user == "" || *unit == "" {
			return errors.New("need -user and -unit")
		}
		tok, err := accessToken(ctx, c)
		if err != nil {
			return err
		}
		if err := c.withBearer(tok).assign(ctx, *user, *unit); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "unit-name":
		fs := flag.NewFlagSet("unit-name", flag.ContinueOnError)
		id := fs.String("id", "", "business unit id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("need -id")
		}
		tok, err := accessToken(ctx, c)
		if err != nil {
			return err
		}
		out, err := c.withBearer(tok).unitName(ctx, *id)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
