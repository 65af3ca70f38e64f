// Command pgwireql is a one-shot query runner: it connects, runs a single
// simple-query statement, prints the result, and exits. It exists mainly to
// exercise the pgwire package end-to-end against a real server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pgwire/pgwire"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors pgwire.Config but with YAML tags and string durations,
// for an optional config file layered under the PG_* environment variables.
type fileConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Encoding       string `yaml:"encoding"`
	ConnectTimeout string `yaml:"connect_timeout"`
	QueryTimeout   string `yaml:"query_timeout"`
}

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	sql := strings.Join(flag.Args(), " ")
	if sql == "" {
		fmt.Fprintln(os.Stderr, "usage: pgwireql [-config file.yaml] <sql>")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pgwireql:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgwire.Connect(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pgwireql: connect:", err)
		os.Exit(1)
	}
	defer conn.Close()

	result, err := conn.Query(ctx, sql)
	if err != nil {
		printQueryError(err)
		os.Exit(1)
	}

	printResult(result)
}

// printQueryError reports a failed query. A server-side *pgwire.Error gets
// the full psql-style rendering (message, detail, hint, and a source
// excerpt around the failing position); every other error kind is just
// printed as-is.
func printQueryError(err error) {
	var pgErr *pgwire.Error
	if errors.As(err, &pgErr) {
		fmt.Fprintln(os.Stderr, pgErr.ErrorWithDetail())
		return
	}
	fmt.Fprintln(os.Stderr, "pgwireql: query:", err)
}

func printResult(result *pgwire.QueryResult) {
	if len(result.Fields) > 0 {
		names := make([]string, len(result.Fields))
		for i, f := range result.Fields {
			names[i] = f.Name
		}
		fmt.Println(strings.Join(names, "\t"))
	}
	for _, row := range result.Rows {
		vals := make([]string, len(row.Columns))
		for i, col := range row.Columns {
			if col.Null {
				vals[i] = "<NULL>"
			} else {
				vals[i] = col.Value
			}
		}
		fmt.Println(strings.Join(vals, "\t"))
	}
	fmt.Fprintf(os.Stderr, "%s %d\n", result.Command, result.RowCount)
}

// loadConfig builds a pgwire.Config from, in ascending order of precedence:
// built-in defaults, an optional YAML file, then PG_* environment
// variables — mirroring libpq's own "defaults < config < explicit" layering.
func loadConfig(configPath string) (pgwire.Config, error) {
	cfg := pgwire.Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
		applyFileConfig(&cfg, fc)
	}

	applyEnviron(&cfg, os.Environ())
	return cfg, nil
}

func applyFileConfig(cfg *pgwire.Config, fc fileConfig) {
	cfg.Host = fc.Host
	cfg.Port = fc.Port
	cfg.Database = fc.Database
	cfg.User = fc.User
	cfg.Password = fc.Password
	cfg.Encoding = fc.Encoding
	if fc.ConnectTimeout != "" {
		if d, err := time.ParseDuration(fc.ConnectTimeout); err == nil {
			cfg.ConnectTimeout = d
		}
	}
	if fc.QueryTimeout != "" {
		if d, err := time.ParseDuration(fc.QueryTimeout); err == nil {
			cfg.QueryTimeout = d
		}
	}
}

// applyEnviron reads the documented PG_* environment contract. Unlike
// lib/pq's parseEnviron, unsupported variables are ignored rather than
// panicking: this is a demonstration client, not a libpq-compatibility shim.
func applyEnviron(cfg *pgwire.Config, env []string) {
	for _, v := range env {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "PG_HOST":
			cfg.Host = parts[1]
		case "PG_PORT":
			if p, err := strconv.Atoi(parts[1]); err == nil {
				cfg.Port = p
			}
		case "PG_DATABASE":
			cfg.Database = parts[1]
		case "PG_USER":
			cfg.User = parts[1]
		case "PG_PASSWORD":
			cfg.Password = parts[1]
		case "PG_CLIENT_ENCODING":
			cfg.Encoding = parts[1]
		}
	}
}
