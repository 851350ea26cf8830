package db

// SchemaSQL defines the publishing tables.
const SchemaSQL = `
    -- ==========================================================================
    -- DRILL ROW TABLE (one flattened session/player/drill row)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS drill_row SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_date ON drill_row TYPE string;
    DEFINE FIELD IF NOT EXISTS drill_id ON drill_row TYPE string;
    DEFINE FIELD IF NOT EXISTS player_custom_id ON drill_row TYPE string;
    DEFINE FIELD IF NOT EXISTS player_display_name ON drill_row TYPE string;
    DEFINE FIELD IF NOT EXISTS source_run ON drill_row TYPE string;
    DEFINE FIELD IF NOT EXISTS metrics ON drill_row TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS published ON drill_row TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS drill_row_date ON drill_row FIELDS session_date;
    DEFINE INDEX IF NOT EXISTS drill_row_player ON drill_row FIELDS player_custom_id;

    -- ==========================================================================
    -- EXTRACTION RUN TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS extraction_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS range_start ON extraction_run TYPE string;
    DEFINE FIELD IF NOT EXISTS range_end ON extraction_run TYPE string;
    DEFINE FIELD IF NOT EXISTS processed_dates ON extraction_run TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS total_sessions ON extraction_run TYPE int;
    DEFINE FIELD IF NOT EXISTS published_rows ON extraction_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS published ON extraction_run TYPE datetime DEFAULT time::now();
`
