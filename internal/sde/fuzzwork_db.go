package sde

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eve-industry/internal/logger"
	_ "modernc.org/sqlite"
)

// FuzzworkDB is a RecipeSource backed by the Fuzzwork SQLite SDE dump
// (sqlite-latest.sqlite). The database is only read.
type FuzzworkDB struct {
	sql *sql.DB
}

// OpenFuzzworkDB opens the dump at path in read-only mode.
func OpenFuzzworkDB(path string) (*FuzzworkDB, error) {
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open fuzzwork db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping fuzzwork db: %w", err)
	}
	logger.Success("SDE", fmt.Sprintf("Opened %s", path))
	return &FuzzworkDB{sql: sqlDB}, nil
}

// NewFuzzworkDB wraps an already open connection.
func NewFuzzworkDB(db *sql.DB) *FuzzworkDB {
	return &FuzzworkDB{sql: db}
}

// Close closes the database connection.
func (d *FuzzworkDB) Close() error {
	return d.sql.Close()
}

// Recipe implements RecipeSource.
func (d *FuzzworkDB) Recipe(ctx context.Context, productTypeID int32, activity Activity) (*Recipe, error) {
	r := &Recipe{TypeID: productTypeID, Activity: activity}

	// Several blueprints may list the same product; the highest typeID wins,
	// which matches a last-row-wins scan of the CSV dump.
	err := d.sql.QueryRowContext(ctx, `
		SELECT typeID, quantity FROM industryActivityProducts
		WHERE productTypeID = ? AND activityID = ?
		ORDER BY typeID DESC LIMIT 1`,
		productTypeID, int32(activity),
	).Scan(&r.BlueprintTypeID, &r.OutputQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: type %d (%s)", ErrNoRecipe, productTypeID, activity)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", productTypeID, err)
	}

	var baseTime sql.NullInt64
	err = d.sql.QueryRowContext(ctx,
		`SELECT time FROM industryActivity WHERE typeID = ? AND activityID = ?`,
		r.BlueprintTypeID, int32(activity),
	).Scan(&baseTime)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query activity time %d: %w", r.BlueprintTypeID, err)
	}
	r.BaseTime = baseTime.Int64

	rows, err := d.sql.QueryContext(ctx, `
		SELECT materialTypeID, quantity FROM industryActivityMaterials
		WHERE typeID = ? AND activityID = ?
		ORDER BY rowid`,
		r.BlueprintTypeID, int32(activity),
	)
	if err != nil {
		return nil, fmt.Errorf("query materials %d: %w", r.BlueprintTypeID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var m BlueprintMaterial
		if err := rows.Scan(&m.TypeID, &m.Quantity); err != nil {
			return nil, err
		}
		r.Materials = append(r.Materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var name sql.NullString
	// invTypes is optional in trimmed dumps.
	if err := d.sql.QueryRowContext(ctx,
		`SELECT typeName FROM invTypes WHERE typeID = ?`, r.BlueprintTypeID,
	).Scan(&name); err == nil {
		r.BlueprintName = name.String
	}

	return r, nil
}
