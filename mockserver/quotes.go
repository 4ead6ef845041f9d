package mockserver

import (
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// The real test server's sqlite3 script reads from a small database of quotations. The mock keeps
// the same rows in an in-memory SQLite database.
var seedQuotes = map[string]string{ //nolint:gochecknoglobals
	"1c1dcc9d-8e80-43a6-8421-56c5b5f42de7": "Though this be madness, yet there is method in 't. " +
		"Will you walk out of the air, my lord?",
	"5b1b1a4e-2c2f-4a55-9b1e-7c0fd7a1e3a2": "Brevity is the soul of wit.",
}

type quoteRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

type quoteStore struct {
	db *dbx.DB
}

func openQuoteStore() (*quoteStore, error) {
	db, err := dbx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is a separate database.
	db.DB().SetMaxOpenConns(1)

	if _, err := db.NewQuery("CREATE TABLE quotes (key TEXT PRIMARY KEY, value TEXT NOT NULL)").Execute(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for key, value := range seedQuotes {
		_, err := db.NewQuery("INSERT INTO quotes (key, value) VALUES ({:key}, {:value})").
			Bind(dbx.Params{"key": key, "value": value}).Execute()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &quoteStore{db: db}, nil
}

func (s *quoteStore) all() (map[string]string, error) {
	var rows []quoteRow
	if err := s.db.NewQuery("SELECT key, value FROM quotes ORDER BY key").All(&rows); err != nil {
		return nil, err
	}
	ret := make(map[string]string, len(rows))
	for _, r := range rows {
		ret[r.Key] = r.Value
	}
	return ret, nil
}

func (s *quoteStore) close() error {
	return s.db.Close()
}
