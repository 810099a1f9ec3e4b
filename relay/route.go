package relay

// Route is a single bound (method, pattern) -> Service registration,
// produced by flattening a Scope tree at build time.
type Route struct {
	Method  string
	Pattern Pattern
	Name    string
	Service Service
}
