package core

// Environment selects the logging profile of the service.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment normalises the provided value. Unknown values fall back to
// Development so the application can still start with sensible defaults.
func ParseEnvironment(v string) Environment {
	if Environment(v) == Production {
		return Production
	}
	return Development
}
