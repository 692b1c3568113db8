// Package postgres stores goPhoneAuth accounts in PostgreSQL through pgx.
//
// A partial unique index on account_phones(number) WHERE verified makes the
// database reject a second verified holder of a number; those violations are
// reported as goPhoneAuth.ErrPhoneAlreadyRegistered.
package postgres

import (
	"context"
	"errors"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements goPhoneAuth.AccountStore on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectAccounts = `
	SELECT a.id, a.username, a.created_at, p.number, p.verified
	  FROM accounts a
	  LEFT JOIN account_phones p ON p.account_id = a.id`

func (s *Store) GetAccount(ctx context.Context, userID string) (*goPhoneAuth.Account, error) {
	rows, err := s.pool.Query(ctx, selectAccounts+`
		 WHERE a.id = $1
		 ORDER BY p.number, p.verified`, userID)
	if err != nil {
		return nil, err
	}
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, goPhoneAuth.ErrUserNotFound
	}
	return &accounts[0], nil
}

func (s *Store) FindByPhone(ctx context.Context, number string, verifiedOnly bool) ([]goPhoneAuth.Account, error) {
	rows, err := s.pool.Query(ctx, selectAccounts+`
		 WHERE a.id IN (
			SELECT account_id FROM account_phones
			 WHERE number = $1 AND (verified OR NOT $2)
		 )
		 ORDER BY a.created_at, a.id, p.number, p.verified`, number, verifiedOnly)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (s *Store) InsertAccount(ctx context.Context, account goPhoneAuth.Account) (string, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO accounts (id, username, created_at) VALUES ($1, $2, $3)`,
			account.ID, account.Username, account.CreatedAt)
		for _, p := range account.Phones {
			batch.Queue(`INSERT INTO account_phones (account_id, number, verified) VALUES ($1, $2, $3)
				ON CONFLICT (account_id, number, verified) DO NOTHING`,
				account.ID, p.Number, p.Verified)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return "", translate(err)
	}
	return account.ID, nil
}

func (s *Store) DeleteAccount(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, userID)
	return err
}

// SetPhoneVerified replaces an unverified entry with its verified twin in one
// statement; the partial unique index guards the insert.
func (s *Store) SetPhoneVerified(ctx context.Context, userID, number string) error {
	var matched int
	err := s.pool.QueryRow(ctx, `
		WITH acct AS (
			SELECT id FROM accounts WHERE id = $1
		), gone AS (
			DELETE FROM account_phones
			 WHERE account_id IN (SELECT id FROM acct) AND number = $2 AND NOT verified
			RETURNING account_id
		), promoted AS (
			INSERT INTO account_phones (account_id, number, verified)
			SELECT account_id, $2, true FROM gone
			ON CONFLICT (account_id, number, verified) DO NOTHING
		)
		SELECT count(*) FROM acct`, userID, number).Scan(&matched)
	if err != nil {
		return translate(err)
	}
	if matched == 0 {
		return goPhoneAuth.ErrUserNotFound
	}
	return nil
}

func (s *Store) AddPhone(ctx context.Context, userID string, entry goPhoneAuth.PhoneEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_phones (account_id, number, verified) VALUES ($1, $2, $3)
		ON CONFLICT (account_id, number, verified) DO NOTHING`,
		userID, entry.Number, entry.Verified)
	return translate(err)
}

func (s *Store) RemovePhone(ctx context.Context, userID, number string) error {
	var matched int
	err := s.pool.QueryRow(ctx, `
		WITH acct AS (
			SELECT id FROM accounts WHERE id = $1
		), removed AS (
			DELETE FROM account_phones WHERE account_id = $1 AND number = $2
		)
		SELECT count(*) FROM acct`, userID, number).Scan(&matched)
	if err != nil {
		return err
	}
	if matched == 0 {
		return goPhoneAuth.ErrUserNotFound
	}
	return nil
}

// collectAccounts folds joined rows, ordered by account, into accounts.
func collectAccounts(rows pgx.Rows) ([]goPhoneAuth.Account, error) {
	defer rows.Close()

	var out []goPhoneAuth.Account
	for rows.Next() {
		var (
			id, username string
			createdAt    time.Time
			number       *string
			verified     *bool
		)
		if err := rows.Scan(&id, &username, &createdAt, &number, &verified); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, goPhoneAuth.Account{
				ID:        id,
				Username:  username,
				Phones:    []goPhoneAuth.PhoneEntry{},
				CreatedAt: createdAt.UTC(),
			})
		}
		if number != nil {
			last := &out[len(out)-1]
			last.Phones = append(last.Phones, goPhoneAuth.PhoneEntry{Number: *number, Verified: verified != nil && *verified})
		}
	}
	return out, rows.Err()
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == verifiedNumberIndex:
			return goPhoneAuth.ErrPhoneAlreadyRegistered
		case pgErr.Code == codeForeignKeyViolation:
			return goPhoneAuth.ErrUserNotFound
		}
	}
	return err
}
