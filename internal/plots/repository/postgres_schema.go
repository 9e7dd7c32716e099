package repository

// plotWriterLockKey is the transaction-scoped advisory lock that serializes
// every plot write in Postgres, both in WithinTx and in the trigger.
const plotWriterLockKey int64 = 482855580787

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS plots (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL
               CONSTRAINT plots_name_check CHECK (btrim(name) <> '' AND char_length(name) <= 255),
    geometry   geometry(Polygon, 4326) NOT NULL
               CONSTRAINT plots_geometry_valid CHECK (ST_IsValid(geometry)),
    area       DOUBLE PRECISION CONSTRAINT plots_area_check CHECK (area >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS plots_geometry_key ON plots (ST_AsBinary(geometry))`,
	`CREATE INDEX IF NOT EXISTS plots_geometry_gist ON plots USING GIST (geometry)`,
	`CREATE INDEX IF NOT EXISTS plots_created_at_idx ON plots (created_at DESC, id DESC)`,
	`CREATE OR REPLACE FUNCTION plots_enforce_consistency() RETURNS trigger
LANGUAGE plpgsql AS $$
DECLARE
    conflicting_id BIGINT;
BEGIN
    PERFORM pg_advisory_xact_lock(482855580787);

    IF NOT ST_IsValid(NEW.geometry) THEN
        RAISE EXCEPTION 'plot geometry is not valid: %', ST_IsValidReason(NEW.geometry)
            USING ERRCODE = '23514', CONSTRAINT = 'plots_geometry_valid';
    END IF;
    IF ST_XMax(NEW.geometry) - ST_XMin(NEW.geometry) > 90
       OR ST_YMax(NEW.geometry) - ST_YMin(NEW.geometry) > 90 THEN
        RAISE EXCEPTION 'plot geometry spans more than 90 degrees'
            USING ERRCODE = '23514', CONSTRAINT = 'plots_geometry_valid';
    END IF;

    SELECT p.id INTO conflicting_id
      FROM plots p
     WHERE p.id <> NEW.id
       AND p.geometry && NEW.geometry
       AND ST_Intersects(p.geometry, NEW.geometry)
     ORDER BY p.id
     LIMIT 1;

    IF conflicting_id IS NOT NULL THEN
        RAISE EXCEPTION 'plot geometry intersects plot %', conflicting_id
            USING ERRCODE = '23P01', CONSTRAINT = 'plots_no_overlap';
    END IF;

    IF NEW.area IS NULL THEN
        NEW.area := ST_Area(NEW.geometry::geography);
    ELSIF TG_OP = 'UPDATE' THEN
        IF NEW.area IS NOT DISTINCT FROM OLD.area
           AND ST_AsBinary(NEW.geometry) <> ST_AsBinary(OLD.geometry) THEN
            NEW.area := ST_Area(NEW.geometry::geography);
        END IF;
    END IF;

    RETURN NEW;
END;
$$`,
	`DROP TRIGGER IF EXISTS plots_consistency ON plots`,
	`CREATE TRIGGER plots_consistency
    BEFORE INSERT OR UPDATE OF geometry, area ON plots
    FOR EACH ROW EXECUTE FUNCTION plots_enforce_consistency()`,
}
