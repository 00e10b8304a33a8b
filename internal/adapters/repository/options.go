package repository

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithDialect selects the SQL flavor used for placeholders and DDL.
func WithDialect(d Dialect) Option {
	return func(s *SQLStore) {
		s.dialect = d
	}
}
