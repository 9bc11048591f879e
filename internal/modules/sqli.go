package modules

import (
	"context"
	"net/url"
	"regexp"

	"autoprobe/internal/browser"

	"github.com/fatih/color"
)

// SQLiName is the name of the SQL injection module.
const SQLiName = "SQLiModule"

// responseExcerpt is how many characters of a matching body are kept as evidence.
const responseExcerpt = 500

// SQLiEvidence describes the injection whose response leaked a database error.
type SQLiEvidence struct {
	URL       string `json:"url"`
	Payload   string `json:"payload"`
	Element   string `json:"element"`
	Response  string `json:"response"`
	Signature string `json:"signature"`
}

type signature struct {
	name string
	re   *regexp.Regexp
}

func sig(name, pattern string) signature {
	return signature{name: name, re: regexp.MustCompile(`(?i)` + pattern)}
}

// sqlErrorSignatures are checked in order; the first match wins.
var sqlErrorSignatures = []signature{
	sig("MySQL syntax error", `SQL syntax`),
	sig("MySQL warning", `Warning.*mysqli?_`),
	sig("MySQL client", `valid MySQL result|MySqlClient\.`),
	sig("MSSQL unclosed quotation mark", `Unclosed quotation mark`),
	sig("MSSQL driver", `Microsoft OLE DB Provider for (SQL Server|ODBC Drivers)|ODBC SQL Server Driver|SQL Server.*Driver`),
	sig("MSSQL conversion", `Conversion failed when converting`),
	sig("PostgreSQL error", `PostgreSQL.*ERROR|Warning.*\Wpg_|syntax error at or near|unterminated quoted string`),
	sig("Oracle error", `ORA-[0-9]{5}|quoted string not properly terminated`),
	sig("SQLite error", `SQLITE_ERROR|SQLite3?::|unrecognized token:|near ".*": syntax error`),
	sig("unknown column", `Unknown column '[^']+' in|column "[^"]+" does not exist|no such column`),
	sig("division by zero", `division by zero|divide by zero`),
	sig("timing artifact", `FUNCTION [\w.]*(sleep|benchmark) does not exist|function (pg_)?sleep\([^)]*\) does not exist|Incorrect syntax near .?WAITFOR`),
	sig("generic SQL error", `SQLSTATE\[|SQL command not properly ended|unexpected end of SQL command|DB2 SQL error`),
}

// MatchSQLError returns the name of the first database-error signature found in body.
func MatchSQLError(body string) (string, bool) {
	for _, s := range sqlErrorSignatures {
		if s.re.MatchString(body) {
			return s.name, true
		}
	}
	return "", false
}

// SQLiModule detects error based SQL injection by submitting payloads
// through inputs and inspecting the response for database errors.
type SQLiModule struct {
	state
	opts     Options
	payloads []string
}

// NewSQLiModule creates a new SQLiModule.
func NewSQLiModule(opts Options) *SQLiModule {
	catalog := defaultSQLiPayloads
	if len(opts.SQLiPayloads) > 0 {
		catalog = opts.SQLiPayloads
	}
	return &SQLiModule{
		state:    newState(SQLiName),
		opts:     opts,
		payloads: expandPayloads(catalog, SQLiName),
	}
}

// Payloads returns the catalog in test order.
func (m *SQLiModule) Payloads() []string {
	return append([]string(nil), m.payloads...)
}

func (m *SQLiModule) Run(ctx context.Context, s browser.Session) {
	try := func(ctx context.Context, a attempt) error {
		hit, err := m.submit(ctx, s, a)
		if err != nil || hit {
			return err
		}
		return s.Wait(ctx, m.opts.settle())
	}

	if err := m.injectInputs(ctx, s, m.opts, m.payloads, try); err != nil {
		m.warning().Err(err).Msg("Error running")
	}
	if r := m.Result(); r.Positive {
		m.critical().Interface("evidence", r.Result).Msg(color.RedString("Found positive SQLi result"))
	}
}

// submit injects one payload and reports whether the response matched. The
// response expectation is registered before the submission and released
// before returning.
func (m *SQLiModule) submit(ctx context.Context, s browser.Session, a attempt) (bool, error) {
	expect := s.ExpectResponse(ctx, func(r browser.Response) bool {
		return sameDocument(r.URL(), a.url)
	})
	defer expect.Close()

	if err := a.input.Fill(ctx, a.payload, browser.FillOptions{Force: true}); err != nil {
		return false, err
	}
	if err := s.PressKey(ctx, "Enter"); err != nil {
		return false, err
	}

	resp, err := expect.Wait(ctx, m.opts.responseTimeout())
	if err != nil {
		return false, err
	}
	if resp == nil {
		m.info().Str("payload", a.payload).Msg("No response received")
		return false, nil
	}
	body, err := resp.Text(ctx)
	if err != nil {
		m.warning().Err(err).Str("url", resp.URL()).Msg("Failed to read response body")
		return false, nil
	}

	name, ok := MatchSQLError(body)
	if !ok {
		return false, nil
	}
	m.setResult(SQLiEvidence{
		URL:       a.url,
		Payload:   a.payload,
		Element:   a.element,
		Response:  excerpt(body, responseExcerpt),
		Signature: name,
	})
	m.markPositive()
	return true, nil
}

// sameDocument reports whether two URLs address the same resource, ignoring
// query and fragment so GET form submissions to the page still match.
func sameDocument(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host && trimPath(ua.Path) == trimPath(ub.Path)
}

func trimPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
