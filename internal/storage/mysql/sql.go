package mysql

const upsertAccountSQL = `
INSERT INTO platform_accounts
  (location_id, platform, access_token, refresh_token, expires_at, external_account_id, external_location_id, connected)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  access_token         = VALUES(access_token),
  refresh_token        = VALUES(refresh_token),
  expires_at           = VALUES(expires_at),
  external_account_id  = VALUES(external_account_id),
  external_location_id = VALUES(external_location_id),
  connected            = VALUES(connected),
  updated_at           = CURRENT_TIMESTAMP
`

const getAccountSQL = `
SELECT location_id, platform, access_token, refresh_token, expires_at,
       external_account_id, external_location_id, connected, updated_at
FROM platform_accounts
WHERE location_id = ? AND platform = ?
`

const listConnectedSQL = `
SELECT l.business_id,
       pa.location_id, pa.platform, pa.access_token, pa.refresh_token, pa.expires_at,
       pa.external_account_id, pa.external_location_id, pa.connected, pa.updated_at
FROM platform_accounts pa
JOIN locations l ON l.id = pa.location_id
WHERE pa.connected = 1
ORDER BY pa.location_id, pa.platform
`

const getBusinessSQL = `
SELECT id, name, brand_rules, created_at FROM businesses WHERE id = ?
`

const listBusinessesSQL = `
SELECT id, name, brand_rules, created_at FROM businesses ORDER BY id
`

// Note: `text` is reserved; keep it quoted everywhere. Reconciliation never
// touches status: that column belongs to the reply workflow.
const upsertReviewSQL = "INSERT INTO reviews\n" +
	"  (location_id, platform, platform_id, stars, `text`, author_name, author_avatar, url, status, platform_created_at)\n" +
	"VALUES\n" +
	"  (?, ?, ?, ?, ?, ?, ?, ?, 'NEEDS_REPLY', ?)\n" +
	"ON DUPLICATE KEY UPDATE\n" +
	"  stars               = VALUES(stars),\n" +
	"  `text`              = VALUES(`text`),\n" +
	"  author_name         = COALESCE(VALUES(author_name), reviews.author_name),\n" +
	"  author_avatar       = COALESCE(VALUES(author_avatar), reviews.author_avatar),\n" +
	"  url                 = COALESCE(VALUES(url), reviews.url),\n" +
	"  platform_created_at = COALESCE(VALUES(platform_created_at), reviews.platform_created_at)\n"

const getReviewSQL = "SELECT r.id, r.location_id, r.platform, r.platform_id, r.stars, r.`text`,\n" +
	"       r.author_name, r.author_avatar, r.url, r.status, r.platform_created_at, r.created_at, r.updated_at\n" +
	"FROM reviews r\n" +
	"JOIN locations l ON l.id = r.location_id\n" +
	"WHERE r.id = ? AND l.business_id = ?\n"

const setReviewStatusSQL = `
UPDATE reviews SET status = ? WHERE id = ?
`

const insertReplySQL = `
INSERT INTO replies
  (review_id, draft_text, final_text, tone, status, flagged, is_crisis, violations, sent_by, sent_at, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getReplySQL = "SELECT rp.id, rp.review_id, rp.draft_text, rp.final_text, rp.tone, rp.status,\n" +
	"       rp.flagged, rp.is_crisis, rp.violations, rp.sent_by, rp.sent_at, rp.created_at, rp.updated_at,\n" +
	"       r.id, r.location_id, r.platform, r.platform_id, r.stars, r.`text`,\n" +
	"       r.author_name, r.author_avatar, r.url, r.status, r.platform_created_at, r.created_at, r.updated_at\n" +
	"FROM replies rp\n" +
	"JOIN reviews r ON r.id = rp.review_id\n" +
	"JOIN locations l ON l.id = r.location_id\n" +
	"WHERE rp.id = ? AND l.business_id = ?\n"

// Status guards on the writes below keep a lost race from resurrecting a
// terminal reply; the service reports RowsAffected 0 as an invalid transition.
const setApprovedSQL = `
UPDATE replies SET status = 'APPROVED', final_text = ? WHERE id = ? AND status = 'DRAFT'
`

const markSentReplySQL = `
UPDATE replies
SET status = 'SENT', final_text = ?, sent_by = ?, sent_at = ?
WHERE id = ? AND status IN ('DRAFT', 'APPROVED')
`

const markSentReviewSQL = `
UPDATE reviews SET status = 'AUTO_SENT' WHERE id = ?
`

const markFailedSQL = `
UPDATE replies
SET status = 'FAILED', final_text = ?
WHERE id = ? AND status IN ('DRAFT', 'APPROVED')
`

// Day bounds compare against the platform timestamp when the platform
// reported one, else first-seen time.
const listDayReviewsSQL = "SELECT r.id, r.location_id, r.platform, r.platform_id, r.stars, r.`text`,\n" +
	"       r.author_name, r.author_avatar, r.url, r.status, r.platform_created_at, r.created_at, r.updated_at,\n" +
	"       rp.id, rp.review_id, rp.draft_text, rp.final_text, rp.tone, rp.status,\n" +
	"       rp.flagged, rp.is_crisis, rp.violations, rp.sent_by, rp.sent_at, rp.created_at, rp.updated_at\n" +
	"FROM reviews r\n" +
	"JOIN locations l ON l.id = r.location_id\n" +
	"LEFT JOIN replies rp ON rp.review_id = r.id\n" +
	"WHERE l.business_id = ?\n" +
	"  AND COALESCE(r.platform_created_at, r.created_at) >= ?\n" +
	"  AND COALESCE(r.platform_created_at, r.created_at) < ?\n" +
	"ORDER BY r.id\n"

const upsertSnapshotSQL = `
INSERT INTO metrics_snapshots
  (business_id, snapshot_date, total_reviews, avg_rating, coverage, avg_response_hours, computed_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  total_reviews      = VALUES(total_reviews),
  avg_rating         = VALUES(avg_rating),
  coverage           = VALUES(coverage),
  avg_response_hours = VALUES(avg_response_hours),
  computed_at        = VALUES(computed_at)
`

const insertAuditSQL = `
INSERT INTO audit_log (action, resource, details, created_at)
VALUES (?, ?, ?, ?)
`
