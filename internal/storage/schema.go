package storage

const schemaSQL = `
-- Pages hold every node of the crawl graph; id is the graph node id
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY,
    url TEXT UNIQUE NOT NULL,
    fetched INTEGER NOT NULL DEFAULT 0 CHECK (fetched IN (0, 1)),
    depth INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT '' CHECK (status IN ('', 'fetched', 'failed')),
    reason TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);

-- Links table stores the directed edges between pages
CREATE TABLE IF NOT EXISTS links (
    source_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    target_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    UNIQUE(source_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);

-- BFS fetch order, position 0 is the seed
CREATE TABLE IF NOT EXISTS crawl_order (
    position INTEGER PRIMARY KEY,
    url TEXT NOT NULL
);

-- View of fetched pages with their out-degree (for analysis/reporting)
CREATE VIEW IF NOT EXISTS page_degrees AS
SELECT
    p.id, p.url, p.depth,
    (SELECT COUNT(*) FROM links l WHERE l.source_id = p.id) AS out_degree,
    (SELECT COUNT(*) FROM links l WHERE l.target_id = p.id) AS in_degree
FROM pages p
WHERE p.fetched = 1;

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
