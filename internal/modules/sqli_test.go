package modules

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"autoprobe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mysqlError = "You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version"

func TestSQLiModuleDetectsDatabaseError(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("q", false)
	s.OnEnter = func(s *testutil.Session, el *testutil.Element) {
		s.Respond(targetURL+"?q="+el.Value, "<html><body>"+mysqlError+strings.Repeat("x", 1000)+"</body></html>")
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	r := m.Result()
	assert.Equal(t, SQLiName, r.Name)
	assert.True(t, r.Positive)
	require.IsType(t, SQLiEvidence{}, r.Result)
	ev := r.Result.(SQLiEvidence)
	assert.Equal(t, targetURL, ev.URL)
	assert.Equal(t, `'`, ev.Payload)
	assert.Equal(t, `<input id="q" value="">`, ev.Element)
	assert.Equal(t, "MySQL syntax error", ev.Signature)
	assert.Equal(t, responseExcerpt, utf8.RuneCountInString(ev.Response))
	assert.True(t, strings.HasPrefix(ev.Response, "<html><body>You have an error"))

	assert.Len(t, s.Fills, 1)
	assert.Zero(t, s.OpenExpectations())
}

func TestSQLiModuleTimeoutIsNotAFinding(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("q", false)

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	r := m.Result()
	assert.False(t, r.Positive)
	assert.Nil(t, r.Result)
	assert.Len(t, s.Fills, len(m.Payloads()))
	assert.Len(t, s.Waits, len(m.Payloads()))
	assert.Zero(t, s.OpenExpectations())
}

func TestSQLiModuleIgnoresOtherDocuments(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("q", false)
	s.OnEnter = func(s *testutil.Session, _ *testutil.Element) {
		s.Respond("https://site.test/api/track", mysqlError)
		s.Respond("https://cdn.test/search", mysqlError)
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	assert.False(t, m.Result().Positive)
	assert.Len(t, s.Fills, len(m.Payloads()))
}

func TestSQLiModuleIgnoresCleanResponses(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("q", false)
	s.OnEnter = func(s *testutil.Session, _ *testutil.Element) {
		s.Respond(targetURL, "<html><body>No results</body></html>")
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	assert.False(t, m.Result().Positive)
	assert.Nil(t, m.Result().Result)
	assert.Zero(t, s.OpenExpectations())
}

func TestSQLiModuleStopsAtFirstPositiveInput(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("a", false)
	s.AddInput("b", false)
	s.OnEnter = func(s *testutil.Session, el *testutil.Element) {
		if el.ID == "a" && el.Value == `"` {
			s.Respond(targetURL, "Unclosed quotation mark after the character string")
		}
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	r := m.Result()
	require.True(t, r.Positive)
	assert.Equal(t, "MSSQL unclosed quotation mark", r.Result.(SQLiEvidence).Signature)
	assert.Equal(t, []string{`a='`, `a="`}, s.Fills)
}

func TestMatchSQLError(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{mysqlError, "MySQL syntax error", true},
		{"Warning: mysql_fetch_array() expects parameter 1", "MySQL warning", true},
		{"Unclosed quotation mark after the character string ''.", "MSSQL unclosed quotation mark", true},
		{`ERROR: syntax error at or near "'"`, "PostgreSQL error", true},
		{"ORA-01756: quoted string not properly terminated", "Oracle error", true},
		{`SQLITE_ERROR: near "'": syntax error`, "SQLite error", true},
		{"Unknown column 'x' in 'where clause'", "unknown column", true},
		{"Warning: Division by zero", "division by zero", true},
		{"FUNCTION shop.SLEEP does not exist", "timing artifact", true},
		{"SQLSTATE[42000]: Syntax error or access violation", "generic SQL error", true},
		{"<html><body>Welcome to our SQL tutorial</body></html>", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchSQLError(tt.body)
		assert.Equal(t, tt.ok, ok, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
}

func TestSameDocument(t *testing.T) {
	assert.True(t, sameDocument("https://site.test/search?q=1#top", "https://site.test/search"))
	assert.True(t, sameDocument("https://site.test", "https://site.test/"))
	assert.False(t, sameDocument("https://site.test/search", "http://site.test/search"))
	assert.False(t, sameDocument("https://site.test/other", "https://site.test/search"))
}

func TestExcerptCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", excerpt("héllo", 10))
	assert.Equal(t, "hé", excerpt("héllo", 2))
}

func TestSQLiModuleOnPreviouslyMutatedPage(t *testing.T) {
	s := testutil.NewSession(targetURL)
	q := s.AddInput("q", false)
	q.Value = `<script>alert('XSSModule')</script>`
	s.OnEnter = func(s *testutil.Session, el *testutil.Element) {
		if el.Value == `'` {
			s.Respond(targetURL, mysqlError)
		}
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	r := m.Result()
	require.True(t, r.Positive)
	assert.Equal(t, `<input id="q" value="<script>alert('XSSModule')</script>">`, r.Result.(SQLiEvidence).Element)
	assert.Equal(t, []string{`q='`}, s.Fills)
}

func TestSQLiModuleRequeriesAfterSamePagePostback(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("token", true)
	s.AddInput("q", false)
	s.OnEnter = func(s *testutil.Session, el *testutil.Element) {
		if el.Value == `' UNION SELECT NULL-- -` {
			s.Respond(targetURL, "SQLSTATE[21000]: Cardinality violation")
		} else {
			s.Respond(targetURL, "<html><body>No results</body></html>")
		}
		s.ReplaceDocument()
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	r := m.Result()
	require.True(t, r.Positive)
	ev := r.Result.(SQLiEvidence)
	assert.Equal(t, `' UNION SELECT NULL-- -`, ev.Payload)
	assert.Equal(t, `<input id="q" value="">`, ev.Element)
	assert.Len(t, s.Fills, 8)
	assert.Zero(t, s.Backs)
	assert.Zero(t, s.OpenExpectations())
}

func TestSQLiModuleTestsWholeCatalogAcrossPostbacks(t *testing.T) {
	s := testutil.NewSession(targetURL)
	s.AddInput("q", false)
	s.OnEnter = func(s *testutil.Session, _ *testutil.Element) {
		s.Respond(targetURL, "<html><body>No results</body></html>")
		s.ReplaceDocument()
	}

	m := NewSQLiModule(Options{})
	m.Run(context.Background(), s)

	assert.False(t, m.Result().Positive)
	assert.Len(t, s.Fills, len(m.Payloads()))
}
