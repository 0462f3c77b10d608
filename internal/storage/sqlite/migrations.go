package sqlite

// schema contains the database schema DDL.
const schema = `
-- Glucose readings, unique per subject and timestamp. Both unit
-- representations are stored redundantly for query convenience.
CREATE TABLE IF NOT EXISTS glucose_readings (
    subject_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    mgdl REAL NOT NULL,
    mmol REAL NOT NULL,
    trend TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (subject_id, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_glucose_subject_time ON glucose_readings(subject_id, timestamp);

-- Wearable metrics, one table per metric kind
CREATE TABLE IF NOT EXISTS heart_rate_samples (
    subject_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    bpm INTEGER NOT NULL,
    PRIMARY KEY (subject_id, timestamp)
);

CREATE TABLE IF NOT EXISTS hrv_daily_summaries (
    subject_id TEXT NOT NULL,
    date DATETIME NOT NULL,
    daily_rmssd REAL NOT NULL DEFAULT 0,
    deep_rmssd REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (subject_id, date)
);

CREATE TABLE IF NOT EXISTS hrv_intraday_samples (
    subject_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    rmssd REAL NOT NULL DEFAULT 0,
    coverage REAL NOT NULL DEFAULT 0,
    lf REAL NOT NULL DEFAULT 0,
    hf REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (subject_id, timestamp)
);

CREATE TABLE IF NOT EXISTS sleep_sessions (
    subject_id TEXT NOT NULL,
    start_time DATETIME NOT NULL,
    end_time DATETIME NOT NULL,
    deep_minutes INTEGER NOT NULL DEFAULT 0,
    light_minutes INTEGER NOT NULL DEFAULT 0,
    rem_minutes INTEGER NOT NULL DEFAULT 0,
    wake_minutes INTEGER NOT NULL DEFAULT 0,
    efficiency INTEGER NOT NULL DEFAULT 0,
    is_main_sleep INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (subject_id, start_time)
);

CREATE TABLE IF NOT EXISTS activity_daily_summaries (
    subject_id TEXT NOT NULL,
    date DATETIME NOT NULL,
    steps INTEGER NOT NULL DEFAULT 0,
    calories_out INTEGER NOT NULL DEFAULT 0,
    distance_km REAL NOT NULL DEFAULT 0,
    sedentary_minutes INTEGER NOT NULL DEFAULT 0,
    lightly_active_minutes INTEGER NOT NULL DEFAULT 0,
    fairly_active_minutes INTEGER NOT NULL DEFAULT 0,
    very_active_minutes INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (subject_id, date)
);

CREATE TABLE IF NOT EXISTS steps_intraday_samples (
    subject_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    steps INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (subject_id, timestamp)
);

-- Incremental fetch cursors
CREATE TABLE IF NOT EXISTS poll_cursors (
    subject_id TEXT NOT NULL,
    source TEXT NOT NULL,
    metric TEXT NOT NULL,
    last_timestamp DATETIME NOT NULL,
    PRIMARY KEY (subject_id, source, metric)
);

-- Compound meal records: parent row plus estimate detail
CREATE TABLE IF NOT EXISTS meals (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    description TEXT NOT NULL,
    logged_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_meals_subject_time ON meals(subject_id, logged_at);

CREATE TABLE IF NOT EXISTS meal_estimates (
    meal_id TEXT PRIMARY KEY REFERENCES meals(id),
    calories REAL NOT NULL DEFAULT 0,
    protein_g REAL NOT NULL DEFAULT 0,
    carbs_g REAL NOT NULL DEFAULT 0,
    fat_g REAL NOT NULL DEFAULT 0,
    confidence TEXT NOT NULL DEFAULT ''
);
`
