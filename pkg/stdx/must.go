package stdx

// Must0 panics when err is not nil.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, or panics when err is not nil.
//
// Use it where an error can only come from a programming mistake, such as
// building an executor from a static set of options.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
