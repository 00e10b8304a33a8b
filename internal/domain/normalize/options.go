package normalize

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithDayFirst reads ambiguous slash/dash dates such as 03/04/2024 as
// day/month/year instead of month/day/year.
func WithDayFirst(dayFirst bool) Option {
	return func(n *Normalizer) {
		n.dayFirst = dayFirst
	}
}
