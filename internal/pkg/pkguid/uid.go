package pkguid

// StringID generates unique string identifiers (batch IDs, event IDs).
type StringID interface {
	// Generate generates a unique identifier as a string.
	Generate() string
}

// NumberID generates unique numeric identifiers (row IDs).
type NumberID interface {
	// Generate generates a unique identifier as an int64 number.
	Generate() int64
}

var (
	_ StringID = (*UUID)(nil)
	_ NumberID = (*Snowflake)(nil)
)
