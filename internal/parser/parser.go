package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

// ParseResult holds the executable statements and SET settings of a
// migration, in file order.
type ParseResult struct {
	Statements []string
	Settings   map[string]string
	SQL        string
}

// Parse strips comments from a migration's SQL and splits it into
// statements and settings. Statements that start with SET contribute
// settings and are not executed.
// Returns an empty result (zero statements) for empty or comment-only input.
func Parse(sql string) (*ParseResult, error) {
	clean, err := StripComments(sql)
	if err != nil {
		return nil, err
	}

	stmts, settings := separateSettings(SplitStatements(clean, DefaultDelimiter))

	return &ParseResult{
		Statements: stmts,
		Settings:   settings,
		SQL:        sql,
	}, nil
}
