package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/audit"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func isDuplicate(err error) bool {
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- credential store ----

func (r *Repo) GetAccount(ctx context.Context, locationID int64, p domain.Platform) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, getAccountSQL, locationID, string(p))
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, err
}

func (r *Repo) PutAccount(ctx context.Context, a domain.Account) error {
	var exp any
	if a.ExpiresAt != nil {
		exp = a.ExpiresAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertAccountSQL,
		a.LocationID,
		string(a.Platform),
		nullIfEmpty(a.AccessToken),
		nullIfEmpty(a.RefreshToken),
		exp,
		nullIfEmpty(a.ExternalAccountID),
		nullIfEmpty(a.ExternalLocationID),
		a.Connected,
	)
	return err
}

func (r *Repo) ListConnected(ctx context.Context) ([]domain.ConnectedAccount, error) {
	rows, err := r.db.QueryContext(ctx, listConnectedSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConnectedAccount
	for rows.Next() {
		var (
			ca                 domain.ConnectedAccount
			platform           string
			access, refresh    sql.NullString
			expiresAt          sql.NullTime
			extAccount, extLoc sql.NullString
		)
		if err := rows.Scan(
			&ca.BusinessID,
			&ca.Account.LocationID,
			&platform,
			&access, &refresh,
			&expiresAt,
			&extAccount, &extLoc,
			&ca.Account.Connected,
			&ca.Account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ca.Account.Platform = domain.Platform(platform)
		ca.Account.AccessToken = access.String
		ca.Account.RefreshToken = refresh.String
		ca.Account.ExpiresAt = timePtr(expiresAt)
		ca.Account.ExternalAccountID = extAccount.String
		ca.Account.ExternalLocationID = extLoc.String
		out = append(out, ca)
	}
	return out, rows.Err()
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                  domain.Account
		platform           string
		access, refresh    sql.NullString
		expiresAt          sql.NullTime
		extAccount, extLoc sql.NullString
	)
	if err := row.Scan(
		&a.LocationID,
		&platform,
		&access, &refresh,
		&expiresAt,
		&extAccount, &extLoc,
		&a.Connected,
		&a.UpdatedAt,
	); err != nil {
		return domain.Account{}, err
	}
	a.Platform = domain.Platform(platform)
	a.AccessToken = access.String
	a.RefreshToken = refresh.String
	a.ExpiresAt = timePtr(expiresAt)
	a.ExternalAccountID = extAccount.String
	a.ExternalLocationID = extLoc.String
	return a, nil
}

// ---- business store ----

func (r *Repo) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	var (
		b          domain.Business
		brandRules sql.NullString
	)
	err := r.db.QueryRowContext(ctx, getBusinessSQL, id).Scan(&b.ID, &b.Name, &brandRules, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Business{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Business{}, err
	}
	b.BrandRules = brandRules.String
	return b, nil
}

func (r *Repo) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx, listBusinessesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Business
	for rows.Next() {
		var (
			b          domain.Business
			brandRules sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &brandRules, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.BrandRules = brandRules.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---- review store ----

// UpsertDraft inserts or refreshes one platform review. Created reports an
// insert: MySQL answers RowsAffected 1 for insert, 2 for update, 0 when the
// row already matched.
func (r *Repo) UpsertDraft(ctx context.Context, locationID int64, p domain.Platform, d domain.ReviewDraft) (bool, error) {
	var platformCreated any
	if !d.CreatedAt.IsZero() {
		platformCreated = d.CreatedAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, upsertReviewSQL,
		locationID,
		string(p),
		d.PlatformID,
		d.Stars,
		d.Text,
		valStr(d.AuthorName),
		valStr(d.AuthorAvatar),
		valStr(d.URL),
		platformCreated,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repo) GetReview(ctx context.Context, reviewID, businessID int64) (domain.Review, error) {
	row := r.db.QueryRowContext(ctx, getReviewSQL, reviewID, businessID)

	var (
		rv                         domain.Review
		platform, status           string
		authorName, avatar, rawURL sql.NullString
		platformCreated            sql.NullTime
	)
	if err := row.Scan(
		&rv.ID,
		&rv.LocationID,
		&platform,
		&rv.PlatformID,
		&rv.Stars,
		&rv.Text,
		&authorName, &avatar, &rawURL,
		&status,
		&platformCreated,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Review{}, domain.ErrReviewNotFound
		}
		return domain.Review{}, err
	}
	rv.Platform = domain.Platform(platform)
	rv.Status = domain.ReviewStatus(status)
	rv.AuthorName = strPtr(authorName)
	rv.AuthorAvatar = strPtr(avatar)
	rv.URL = strPtr(rawURL)
	if platformCreated.Valid {
		rv.PlatformCreatedAt = platformCreated.Time.UTC()
	}
	return rv, nil
}

func (r *Repo) SetReviewStatus(ctx context.Context, reviewID int64, s domain.ReviewStatus) error {
	res, err := r.db.ExecContext(ctx, setReviewStatusSQL, string(s), reviewID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

// ---- reply store ----

// CreateReply inserts the review's single reply. The unique key on review_id
// turns a concurrent second insert into ErrReplyExists.
func (r *Repo) CreateReply(ctx context.Context, rp domain.Reply) (domain.Reply, error) {
	now := time.Now().UTC().Truncate(time.Second)
	var violations any
	if len(rp.Violations) > 0 {
		b, err := json.Marshal(rp.Violations)
		if err != nil {
			return domain.Reply{}, err
		}
		violations = string(b)
	}
	var sentAt any
	if rp.SentAt != nil {
		sentAt = rp.SentAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, insertReplySQL,
		rp.ReviewID,
		rp.DraftText,
		valStr(rp.FinalText),
		rp.Tone,
		string(rp.Status),
		rp.Flagged,
		rp.IsCrisis,
		violations,
		valStr(rp.SentBy),
		sentAt,
		now,
		now,
	)
	if err != nil {
		if isDuplicate(err) {
			return domain.Reply{}, domain.ErrReplyExists
		}
		return domain.Reply{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Reply{}, err
	}
	rp.ID = id
	rp.CreatedAt = now
	rp.UpdatedAt = now
	return rp, nil
}

func (r *Repo) GetReply(ctx context.Context, replyID, businessID int64) (domain.Reply, domain.Review, error) {
	row := r.db.QueryRowContext(ctx, getReplySQL, replyID, businessID)

	var (
		rp                         domain.Reply
		rv                         domain.Review
		finalText, violations      sql.NullString
		sentBy                     sql.NullString
		sentAt                     sql.NullTime
		replyStatus                string
		platform, reviewStatus     string
		authorName, avatar, rawURL sql.NullString
		platformCreated            sql.NullTime
	)
	if err := row.Scan(
		&rp.ID, &rp.ReviewID, &rp.DraftText, &finalText, &rp.Tone, &replyStatus,
		&rp.Flagged, &rp.IsCrisis, &violations, &sentBy, &sentAt, &rp.CreatedAt, &rp.UpdatedAt,
		&rv.ID, &rv.LocationID, &platform, &rv.PlatformID, &rv.Stars, &rv.Text,
		&authorName, &avatar, &rawURL, &reviewStatus, &platformCreated, &rv.CreatedAt, &rv.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Reply{}, domain.Review{}, domain.ErrReplyNotFound
		}
		return domain.Reply{}, domain.Review{}, err
	}

	rp.FinalText = strPtr(finalText)
	rp.Status = domain.ReplyStatus(replyStatus)
	rp.SentBy = strPtr(sentBy)
	rp.SentAt = timePtr(sentAt)
	if violations.Valid && violations.String != "" {
		_ = json.Unmarshal([]byte(violations.String), &rp.Violations)
	}

	rv.Platform = domain.Platform(platform)
	rv.Status = domain.ReviewStatus(reviewStatus)
	rv.AuthorName = strPtr(authorName)
	rv.AuthorAvatar = strPtr(avatar)
	rv.URL = strPtr(rawURL)
	if platformCreated.Valid {
		rv.PlatformCreatedAt = platformCreated.Time.UTC()
	}
	return rp, rv, nil
}

func (r *Repo) SetApproved(ctx context.Context, replyID int64, finalText string) error {
	res, err := r.db.ExecContext(ctx, setApprovedSQL, finalText, replyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// MarkSent promotes reply and review together so a crash between the two
// writes cannot leave a sent reply on a review still marked needs-reply.
func (r *Repo) MarkSent(ctx context.Context, replyID, reviewID int64, finalText, sentBy string, sentAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, markSentReplySQL, finalText, sentBy, sentAt.UTC(), replyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	if _, err := tx.ExecContext(ctx, markSentReviewSQL, reviewID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) MarkFailed(ctx context.Context, replyID int64, finalText string) error {
	res, err := r.db.ExecContext(ctx, markFailedSQL, finalText, replyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// ---- metrics store ----

func (r *Repo) ListDayForBusiness(ctx context.Context, businessID int64, day time.Time) ([]domain.ReviewWithReply, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows, err := r.db.QueryContext(ctx, listDayReviewsSQL, businessID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewWithReply
	for rows.Next() {
		var (
			rv                         domain.Review
			platform, reviewStatus     string
			authorName, avatar, rawURL sql.NullString
			platformCreated            sql.NullTime

			replyID, replyReviewID sql.NullInt64
			draftText, finalText   sql.NullString
			tone, replyStatus      sql.NullString
			flagged, isCrisis      sql.NullBool
			violations, sentBy     sql.NullString
			sentAt                 sql.NullTime
			replyCreated, replyUpd sql.NullTime
		)
		if err := rows.Scan(
			&rv.ID, &rv.LocationID, &platform, &rv.PlatformID, &rv.Stars, &rv.Text,
			&authorName, &avatar, &rawURL, &reviewStatus, &platformCreated, &rv.CreatedAt, &rv.UpdatedAt,
			&replyID, &replyReviewID, &draftText, &finalText, &tone, &replyStatus,
			&flagged, &isCrisis, &violations, &sentBy, &sentAt, &replyCreated, &replyUpd,
		); err != nil {
			return nil, err
		}
		rv.Platform = domain.Platform(platform)
		rv.Status = domain.ReviewStatus(reviewStatus)
		rv.AuthorName = strPtr(authorName)
		rv.AuthorAvatar = strPtr(avatar)
		rv.URL = strPtr(rawURL)
		if platformCreated.Valid {
			rv.PlatformCreatedAt = platformCreated.Time.UTC()
		}

		item := domain.ReviewWithReply{Review: rv}
		if replyID.Valid {
			rp := domain.Reply{
				ID:        replyID.Int64,
				ReviewID:  replyReviewID.Int64,
				DraftText: draftText.String,
				FinalText: strPtr(finalText),
				Tone:      tone.String,
				Status:    domain.ReplyStatus(replyStatus.String),
				Flagged:   flagged.Bool,
				IsCrisis:  isCrisis.Bool,
				SentBy:    strPtr(sentBy),
				SentAt:    timePtr(sentAt),
			}
			if violations.Valid && violations.String != "" {
				_ = json.Unmarshal([]byte(violations.String), &rp.Violations)
			}
			if replyCreated.Valid {
				rp.CreatedAt = replyCreated.Time.UTC()
			}
			if replyUpd.Valid {
				rp.UpdatedAt = replyUpd.Time.UTC()
			}
			item.Reply = &rp
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertSnapshot(ctx context.Context, s domain.MetricsSnapshot) error {
	computed := s.ComputedAt
	if computed.IsZero() {
		computed = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertSnapshotSQL,
		s.BusinessID,
		s.Date,
		s.TotalReviews,
		s.AvgRating,
		s.Coverage,
		s.AvgResponseHours,
		computed.UTC().Truncate(time.Second),
	)
	return err
}

// ---- audit writer ----

func (r *Repo) WriteEvent(ctx context.Context, e audit.Event) error {
	var details any
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = string(b)
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertAuditSQL, e.Action, e.Resource, details, at.UTC().Truncate(time.Second))
	return err
}
