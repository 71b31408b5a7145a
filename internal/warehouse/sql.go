package warehouse

// Postgres push-down aggregations. All bucketing is done in UTC.

const hourlySlotsSQL = `
SELECT s.id AS station_id,
       s.name AS station_name,
       s.docks_count AS docks_count,
       date_trunc('day', h.end_date AT TIME ZONE 'UTC') AS day,
       EXTRACT(HOUR FROM h.end_date AT TIME ZONE 'UTC')::int AS hour,
       COUNT(*) AS arrivals
FROM cycle_hire h
JOIN cycle_stations s ON s.id = h.end_station_id
WHERE h.end_date >= ? AND h.end_date < ?
  AND s.docks_count > 0
GROUP BY 1, 2, 3, 4, 5
ORDER BY 1, 4, 5`

const stationFlowsSQL = `
WITH window_trips AS (
    SELECT start_station_id, end_station_id
    FROM cycle_hire
    WHERE start_date >= ? AND start_date < ?
), outs AS (
    SELECT start_station_id AS station_id, COUNT(*) AS n FROM window_trips GROUP BY 1
), ins AS (
    SELECT end_station_id AS station_id, COUNT(*) AS n FROM window_trips GROUP BY 1
)
SELECT s.id AS station_id,
       s.name AS station_name,
       s.docks_count AS docks_count,
       COALESCE(o.n, 0) AS outflows,
       COALESCE(i.n, 0) AS inflows
FROM cycle_stations s
LEFT JOIN outs o ON o.station_id = s.id
LEFT JOIN ins i ON i.station_id = s.id
WHERE o.n IS NOT NULL OR i.n IS NOT NULL
ORDER BY s.id`

const windowTripCountSQL = `
SELECT COUNT(*) FROM cycle_hire WHERE start_date >= ? AND start_date < ?`

// dow is 1=Sunday through 7=Saturday.
const networkArrivalsSQL = `
SELECT EXTRACT(DOW FROM end_date AT TIME ZONE 'UTC')::int + 1 AS dow,
       EXTRACT(HOUR FROM end_date AT TIME ZONE 'UTC')::int AS hour,
       COUNT(*) AS arrivals
FROM cycle_hire
WHERE end_date >= ? AND end_date < ?
GROUP BY 1, 2`

const sqliteStationsSQL = `SELECT id, name, docks_count FROM cycle_stations ORDER BY id`

const sqliteTripsSQL = `
SELECT rental_id, start_station_id, end_station_id, start_date, end_date
FROM cycle_hire
WHERE (start_date >= ? AND start_date < ?)
   OR (end_date >= ? AND end_date < ?)
ORDER BY rental_id`

const sqliteUpsertStationSQL = `
INSERT INTO cycle_stations (id, name, docks_count) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, docks_count = excluded.docks_count`

const sqliteUpsertTripSQL = `
INSERT INTO cycle_hire (rental_id, start_station_id, end_station_id, start_date, end_date, duration)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(rental_id) DO UPDATE SET
    start_station_id = excluded.start_station_id,
    end_station_id = excluded.end_station_id,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    duration = excluded.duration`

const pgUpsertStationSQL = `
INSERT INTO cycle_stations (id, name, docks_count) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, docks_count = EXCLUDED.docks_count`

const pgCreateTripStageSQL = `
CREATE TEMP TABLE cycle_hire_stage (LIKE cycle_hire INCLUDING DEFAULTS) ON COMMIT DROP`

const pgMergeTripStageSQL = `
INSERT INTO cycle_hire (rental_id, start_station_id, end_station_id, start_date, end_date, duration)
SELECT rental_id, start_station_id, end_station_id, start_date, end_date, duration
FROM cycle_hire_stage
ON CONFLICT (rental_id) DO NOTHING`
