package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ryokrieger/CityConnect/internal/models"
)

var (
	ErrInterestNotFound     = errors.New("interest not found")
	ErrInterestExists       = errors.New("an interest with that name already exists")
	ErrInvalidInterest      = errors.New("interest name is required")
	ErrCityExists           = errors.New("city already exists")
	ErrNeighborhoodExists   = errors.New("neighborhood already exists")
	ErrInvalidLocationInput = errors.New("code and name are required")
)

type LocationService struct {
	db DB
}

func NewLocationService(db DB) *LocationService {
	return &LocationService{db: db}
}

func (s *LocationService) ListCities(ctx context.Context) ([]models.City, error) {
	rows, err := s.db.Query(ctx, `SELECT code, name FROM cities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing cities: %w", err)
	}
	defer rows.Close()

	cities := []models.City{}
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// ListNeighborhoods lists every neighborhood, or only those of cityCode
// when it is not empty.
func (s *LocationService) ListNeighborhoods(ctx context.Context, cityCode string) ([]models.Neighborhood, error) {
	rows, err := s.db.Query(ctx,
		`SELECT postal_code, area_name, city_code
		 FROM neighborhoods
		 WHERE $1 = '' OR city_code = $1
		 ORDER BY area_name`,
		strings.TrimSpace(cityCode),
	)
	if err != nil {
		return nil, fmt.Errorf("listing neighborhoods: %w", err)
	}
	defer rows.Close()

	neighborhoods := []models.Neighborhood{}
	for rows.Next() {
		var n models.Neighborhood
		if err := rows.Scan(&n.PostalCode, &n.AreaName, &n.CityCode); err != nil {
			return nil, fmt.Errorf("scanning neighborhood: %w", err)
		}
		neighborhoods = append(neighborhoods, n)
	}
	return neighborhoods, rows.Err()
}

func (s *LocationService) AddCity(ctx context.Context, city models.City) error {
	city.Code = strings.TrimSpace(city.Code)
	city.Name = strings.TrimSpace(city.Name)
	if city.Code == "" || city.Name == "" {
		return ErrInvalidLocationInput
	}
	if _, err := s.db.Exec(ctx, `INSERT INTO cities (code, name) VALUES ($1, $2)`, city.Code, city.Name); err != nil {
		if isUniqueViolation(err) {
			return ErrCityExists
		}
		return fmt.Errorf("adding city: %w", err)
	}
	return nil
}

func (s *LocationService) AddNeighborhood(ctx context.Context, n models.Neighborhood) error {
	n.PostalCode = strings.TrimSpace(n.PostalCode)
	n.AreaName = strings.TrimSpace(n.AreaName)
	if n.PostalCode == "" || n.AreaName == "" {
		return ErrInvalidLocationInput
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO neighborhoods (postal_code, area_name, city_code) VALUES ($1, $2, $3)`,
		n.PostalCode, n.AreaName, n.CityCode,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrNeighborhoodExists
		case isForeignKeyViolation(err):
			return ErrUnknownLocation
		}
		return fmt.Errorf("adding neighborhood: %w", err)
	}
	return nil
}

type InterestService struct {
	db DB
}

func NewInterestService(db DB) *InterestService {
	return &InterestService{db: db}
}

// List returns every interest ordered by category then name.
func (s *InterestService) List(ctx context.Context) ([]models.Interest, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, category, created_at FROM interests ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("listing interests: %w", err)
	}
	defer rows.Close()
	return scanInterests(rows)
}

func (s *InterestService) ListPage(ctx context.Context, page int) (*models.Page[models.Interest], error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM interests`).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting interests: %w", err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, name, category, created_at FROM interests ORDER BY name LIMIT $1 OFFSET $2`,
		models.PageSize, models.PageOffset(page),
	)
	if err != nil {
		return nil, fmt.Errorf("listing interests: %w", err)
	}
	defer rows.Close()

	items, err := scanInterests(rows)
	if err != nil {
		return nil, err
	}
	result := models.NewPage(items, page, total)
	return &result, nil
}

func (s *InterestService) Create(ctx context.Context, name, category string) (*models.Interest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInterest
	}
	interest := &models.Interest{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO interests (name, category) VALUES ($1, $2) RETURNING id, name, category, created_at`,
		name, strings.TrimSpace(category),
	).Scan(&interest.ID, &interest.Name, &interest.Category, &interest.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInterestExists
		}
		return nil, fmt.Errorf("creating interest: %w", err)
	}
	return interest, nil
}

func (s *InterestService) Update(ctx context.Context, id uuid.UUID, name, category string) (*models.Interest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInterest
	}
	interest := &models.Interest{}
	err := s.db.QueryRow(ctx,
		`UPDATE interests SET name = $2, category = $3 WHERE id = $1 RETURNING id, name, category, created_at`,
		id, name, strings.TrimSpace(category),
	).Scan(&interest.ID, &interest.Name, &interest.Category, &interest.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInterestNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInterestExists
		}
		return nil, fmt.Errorf("updating interest: %w", err)
	}
	return interest, nil
}

// Delete removes an interest and, through cascades, every user and group tag.
func (s *InterestService) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM interests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting interest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInterestNotFound
	}
	return nil
}

func scanInterests(rows Rows) ([]models.Interest, error) {
	interests := []models.Interest{}
	for rows.Next() {
		var i models.Interest
		if err := rows.Scan(&i.ID, &i.Name, &i.Category, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning interest: %w", err)
		}
		interests = append(interests, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interests: %w", err)
	}
	return interests, nil
}
