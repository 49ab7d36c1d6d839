package domain

// Route is a fixed shuttle line (a "linha"). Reference data only.
type Route struct {
	ID       string
	Name     string
	DriverID string
}

// Point is a named boarding location (a "ponto").
// Coordinates and radius are optional.
type Point struct {
	ID           string
	RouteID      string
	Name         string
	Latitude     *float64
	Longitude    *float64
	RadiusMeters float64
}

// HasCoordinates reports whether the point can be used for a proximity check.
func (p *Point) HasCoordinates() bool {
	return p != nil && p.Latitude != nil && p.Longitude != nil
}

// Role is the role of the caller as supplied by the authentication boundary.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDriver    Role = "MOTORISTA"
	RolePassenger Role = "PASSAGEIRO"
)
