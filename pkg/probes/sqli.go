package probes

import (
	"context"
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// SQLParam is the query parameter that carries the quote probe.
const SQLParam = "id"

var sqlErrorSignatures = []indicator{
	{regexp.MustCompile(`(?i)you have an error in your sql syntax|mysql_fetch|mysqli?_|warning:.*\bmysql`), "MySQL error"},
	{regexp.MustCompile(`(?i)pg_query|pg_exec|postgresql.*error|syntax error at or near|unterminated quoted string`), "PostgreSQL error"},
	{regexp.MustCompile(`(?i)ORA-\d{5}|quoted string not properly terminated`), "Oracle error"},
	{regexp.MustCompile(`(?i)unclosed quotation mark|microsoft ole db|odbc sql server driver|sqlserverexception`), "SQL Server error"},
	{regexp.MustCompile(`(?i)sqlite3?::|sqlite_error|sqlite\.exception|near ".*": syntax error`), "SQLite error"},
	{regexp.MustCompile(`SQLSTATE\[`), "PDO error"},
}

// SQLInjection appends a single quote to a query parameter and fails when
// the response carries a database error signature the baseline did not.
type SQLInjection struct {
	client netclient.Client
}

func (p *SQLInjection) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDSQLInjection, DisplayName: "SQL Injection"}
}

func (p *SQLInjection) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	base, err := s.get(ctx, target.String(), true)
	if err != nil {
		return s.error(err)
	}
	var baseline findingSet
	scan(base.BodyString(), sqlErrorSignatures, &baseline)

	resp, err := s.get(ctx, target.WithQuery(SQLParam, "1'"), true)
	if err != nil {
		return s.error(err)
	}
	var probed, found findingSet
	scan(resp.BodyString(), sqlErrorSignatures, &probed)
	for _, sig := range probed.items {
		if !baseline.seen[sig] {
			found.add(sig + " after quote in parameter " + SQLParam)
		}
	}

	if found.len() == 0 {
		return s.pass("No database errors triggered", "")
	}
	return s.fail("Database error triggered by a quote", report("Findings", found.items, []string{
		"Use parameterized queries for all database access",
		"Return generic error pages without database messages",
	}))
}
