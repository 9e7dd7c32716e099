package repository

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is database/sql's name for go-sqlite3 with the spatial
// functions installed on every new connection.
const sqliteDriverName = "sqlite3_plots"

var registerSQLiteDriver sync.Once

func ensureSQLiteDriver() {
	registerSQLiteDriver.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("st_isvalid", sqlIsValid, true); err != nil {
					return fmt.Errorf("register st_isvalid: %w", err)
				}
				if err := conn.RegisterFunc("st_intersects", sqlIntersects, true); err != nil {
					return fmt.Errorf("register st_intersects: %w", err)
				}
				if err := conn.RegisterFunc("st_area", sqlArea, true); err != nil {
					return fmt.Errorf("register st_area: %w", err)
				}
				return nil
			},
		})
	})
}

// sqlIsValid returns 1 for a GeoJSON Polygon that passes geometry.Validate
// and 0 for anything else, NULL included.
func sqlIsValid(v any) (valid int64) {
	defer func() {
		if recover() != nil {
			valid = 0
		}
	}()
	p, err := geometry.UnmarshalPolygon(textArg(v))
	if err != nil {
		return 0
	}
	if geometry.Validate(p) != nil {
		return 0
	}
	return 1
}

func sqlIntersects(a, b string) (hit int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("st_intersects: %v", r)
		}
	}()
	pa, err := geometry.UnmarshalPolygon([]byte(a))
	if err != nil {
		return 0, err
	}
	pb, err := geometry.UnmarshalPolygon([]byte(b))
	if err != nil {
		return 0, err
	}
	if geometry.Intersects(pa, pb) {
		return 1, nil
	}
	return 0, nil
}

func sqlArea(s string) (area float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("st_area: %v", r)
		}
	}()
	p, err := geometry.UnmarshalPolygon([]byte(s))
	if err != nil {
		return 0, err
	}
	return geometry.Area(p)
}

func textArg(v any) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	default:
		return nil
	}
}
