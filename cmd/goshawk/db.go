package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bawdo/goshawk/backends"
	"github.com/bawdo/goshawk/internal/debug"
	"github.com/bawdo/goshawk/rewrite"
)

func (s *Session) ctx() context.Context {
	return context.Background()
}

// cmdConnect opens a database connection. With no argument it offers to
// reuse the last DSN or walks through the setup wizard.
func (s *Session) cmdConnect(args string) error {
	if s.conn != nil {
		return fmt.Errorf("already connected to %s (use 'disconnect' first)", s.conn.Engine())
	}
	dsn := strings.TrimSpace(args)
	if dsn == "" && s.lastDSN != "" {
		answer := strings.ToLower(s.prompt(fmt.Sprintf("Reconnect to %s? [y/n/setup] ", backends.RedactDSN(s.lastDSN)), "y"))
		switch answer {
		case "y", "yes":
			dsn = s.lastDSN
		case "setup":
		default:
			return nil
		}
	}
	if dsn == "" {
		var err error
		dsn, err = s.dsnWizard()
		if err != nil {
			return err
		}
	}
	conn, err := backends.Open(s.ctx(), s.engine, dsn)
	if err != nil {
		return err
	}
	s.conn = conn
	s.lastDSN = dsn
	fmt.Fprintf(s.out, "Connected to %s (%s)\n", s.engine, backends.RedactDSN(dsn))
	return nil
}

func (s *Session) cmdDisconnect(string) error {
	if s.conn == nil {
		return errors.New("not connected")
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	fmt.Fprintln(s.out, "Disconnected")
	return nil
}

// cmdExec compiles the current query and runs it over the connection.
// Parameters are always bound here; inlined literals are display-only.
func (s *Session) cmdExec(string) error {
	if s.conn == nil {
		return errors.New("not connected (use 'connect' first)")
	}
	if s.conn.Engine() != s.engine {
		fmt.Fprintf(s.out, "Warning: engine is %s but the connection is %s\n", s.engine, s.conn.Engine())
	}
	root, err := s.currentRoot()
	if err != nil {
		return err
	}
	norm, err := rewrite.Normalize(s.g, root)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := s.cache.Compile(s.g, norm, s.dialect, s.compileOpts(true)...)
	if err != nil {
		return err
	}
	debug.Debug("compiled for exec", "dialect", s.dialect.Name, "elapsed", time.Since(start))
	fmt.Fprintf(s.out, "  %s;\n", res.SQL)
	if len(res.Params) > 0 {
		fmt.Fprintf(s.out, "  Params: %v\n", res.Params)
	}
	result, err := s.conn.Query(s.ctx(), res.SQL, res.Params)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, result.String())
	return nil
}

// prompt reads one answer from the repl, returning def when input is
// unavailable or empty.
func (s *Session) prompt(label, def string) string {
	if s.rl == nil {
		return def
	}
	s.rl.SetPrompt(label)
	defer s.rl.SetPrompt(replPrompt)
	line, err := s.rl.ReadLine()
	if err != nil {
		return def
	}
	if line = strings.TrimSpace(line); line == "" {
		return def
	}
	return line
}

func (s *Session) dsnWizard() (string, error) {
	switch s.engine {
	case "sqlite":
		return s.prompt("sqlite path [:memory:]: ", ":memory:"), nil
	case "postgres":
		host := s.prompt("host [localhost]: ", "localhost")
		port := s.prompt("port [5432]: ", "5432")
		user := s.prompt("user [postgres]: ", "postgres")
		pass := s.prompt("password []: ", "")
		db := s.prompt("database [postgres]: ", "postgres")
		ssl := s.prompt("sslmode [disable]: ", "disable")
		return buildPostgresDSN(host, port, user, pass, db, ssl), nil
	case "mysql":
		host := s.prompt("host [localhost]: ", "localhost")
		port := s.prompt("port [3306]: ", "3306")
		user := s.prompt("user [root]: ", "root")
		pass := s.prompt("password []: ", "")
		db := s.prompt("database []: ", "")
		return buildMySQLDSN(host, port, user, pass, db), nil
	}
	return "", fmt.Errorf("no connection wizard for engine %q", s.engine)
}

func buildPostgresDSN(host, port, user, pass, db, sslmode string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else if user != "" {
		u.User = url.User(user)
	}
	if sslmode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(sslmode)
	}
	return u.String()
}

func buildMySQLDSN(host, port, user, pass, db string) string {
	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s", cred, host, port, db)
}
