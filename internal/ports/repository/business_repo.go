package repository

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BusinessConfigRepository resolves business geofence configuration and
// employment checks from PostgreSQL. The role/permission model behind
// business_employees is owned by the wider platform; this repo only asks
// whether an active employment row exists.
type BusinessConfigRepository struct {
	DB *sql.DB

	// DefaultRadiusMeters applies when a business has a location but no
	// explicit radius configured.
	DefaultRadiusMeters float64
}

// NewBusinessConfigRepository create new instance
func NewBusinessConfigRepository(db *sql.DB, defaultRadiusMeters float64) *BusinessConfigRepository {
	return &BusinessConfigRepository{DB: db, DefaultRadiusMeters: defaultRadiusMeters}
}

// GetLocation returns the registered reference point and radius for a
// business, or (nil, nil) when none is configured.
func (r *BusinessConfigRepository) GetLocation(ctx context.Context, businessID string) (*BusinessLocation, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.business_id", businessID))

	query := `SELECT latitude, longitude, geofence_radius_m
              FROM business_locations
              WHERE business_id = $1`

	loc := &BusinessLocation{}
	var radius sql.NullFloat64

	row := r.DB.QueryRowContext(ctx, query, businessID)
	err := row.Scan(&loc.Point.Latitude, &loc.Point.Longitude, &radius)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if radius.Valid && radius.Float64 > 0 {
		loc.RadiusMeters = radius.Float64
	} else {
		loc.RadiusMeters = r.DefaultRadiusMeters
	}
	return loc, nil
}

// IsAuthorized reports whether the employee has an active employment at the
// business.
func (r *BusinessConfigRepository) IsAuthorized(ctx context.Context, employeeID, businessID string) (bool, error) {
	query := `SELECT EXISTS (
                SELECT 1 FROM business_employees
                WHERE employee_id = $1 AND business_id = $2 AND active
              )`

	var ok bool
	if err := r.DB.QueryRowContext(ctx, query, employeeID, businessID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

var _ BusinessRepository = (*BusinessConfigRepository)(nil)
