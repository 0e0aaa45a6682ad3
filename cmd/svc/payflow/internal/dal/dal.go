// Package dal is the data access layer for vault state: one processor
// profile per user and the cards saved under it.
package dal

import (
	"database/sql"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/golog"
	"github.com/sprucehealth/payflow/libs/transactional/tsql"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("payflow/dal: object not found")

// Profile links a user to their processor customer profile.
type Profile struct {
	UserID    string
	ProfileID string
	Created   time.Time
}

// Card is a vaulted card record.
type Card struct {
	ID           int64
	UserID       string
	ProfileID    string
	CardID       string
	PaymentToken string
	Brand        string
	Last4        string
	ExpMonth     int
	ExpYear      int
	IsDefault    bool
	Created      time.Time
}

// DAL is the set of storage operations the vault manager needs.
type DAL interface {
	Transact(trans func(dal DAL) error) (err error)
	UpsertProfile(userID, profileID string) error
	ProfileForUser(userID string) (*Profile, error)
	DeleteProfile(userID string) error
	InsertCard(card *Card) (int64, error)
	Card(userID string, id int64) (*Card, error)
	CardsForUser(userID string) ([]*Card, error)
	DeleteCard(userID string, id int64) (int64, error)
	SetDefaultCard(userID string, id int64) error
}

type dal struct {
	db tsql.DB
}

// New returns a DAL backed by db.
func New(db *sql.DB) DAL {
	return &dal{db: tsql.AsDB(db)}
}

// Transact runs trans inside a transaction, handling rollback on error or
// panic.
func (d *dal) Transact(trans func(dal DAL) error) (err error) {
	tx, err := d.db.Begin()
	if err != nil {
		return errors.Trace(err)
	}
	tdal := &dal{db: tsql.AsSafeTx(tx)}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			golog.Errorf(string(debug.Stack()))
			err = errors.Trace(fmt.Errorf("encountered panic during transaction execution: %v", r))
		}
	}()
	if err := trans(tdal); err != nil {
		tx.Rollback()
		return errors.Trace(err)
	}
	return errors.Trace(tx.Commit())
}

// UpsertProfile records the processor profile for a user. A concurrent
// insert of a different profile id for the same user leaves the first one
// in place; the caller is expected to re-read and prefer the stored id.
func (d *dal) UpsertProfile(userID, profileID string) error {
	_, err := d.db.Exec(`
		INSERT IGNORE INTO vault_profile (user_id, profile_id) VALUES (?, ?)`,
		userID, profileID)
	return errors.Trace(err)
}

func (d *dal) ProfileForUser(userID string) (*Profile, error) {
	p := &Profile{}
	err := d.db.QueryRow(`
		SELECT user_id, profile_id, created
		FROM vault_profile
		WHERE user_id = ?`, userID).Scan(&p.UserID, &p.ProfileID, &p.Created)
	if err == sql.ErrNoRows {
		return nil, errors.Trace(ErrNotFound)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}

func (d *dal) DeleteProfile(userID string) error {
	_, err := d.db.Exec(`DELETE FROM vault_profile WHERE user_id = ?`, userID)
	return errors.Trace(err)
}

func (d *dal) InsertCard(card *Card) (int64, error) {
	res, err := d.db.Exec(`
		INSERT INTO vault_card
			(user_id, profile_id, card_id, payment_token, brand, last4, exp_month, exp_year, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.UserID, card.ProfileID, card.CardID, card.PaymentToken,
		card.Brand, card.Last4, card.ExpMonth, card.ExpYear, card.IsDefault)
	if err != nil {
		return 0, errors.Trace(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Trace(err)
	}
	return id, nil
}

func (d *dal) Card(userID string, id int64) (*Card, error) {
	row := d.db.QueryRow(`
		SELECT id, user_id, profile_id, card_id, payment_token, brand, last4, exp_month, exp_year, is_default, created
		FROM vault_card
		WHERE user_id = ? AND id = ?`, userID, id)
	card, err := scanCard(row)
	return card, errors.Trace(err)
}

func (d *dal) CardsForUser(userID string) ([]*Card, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, profile_id, card_id, payment_token, brand, last4, exp_month, exp_year, is_default, created
		FROM vault_card
		WHERE user_id = ?
		ORDER BY created, id`, userID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var cards []*Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, errors.Trace(err)
		}
		cards = append(cards, card)
	}
	return cards, errors.Trace(rows.Err())
}

func (d *dal) DeleteCard(userID string, id int64) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM vault_card WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return 0, errors.Trace(err)
	}
	n, err := res.RowsAffected()
	return n, errors.Trace(err)
}

// SetDefaultCard marks one card as the user's default and clears the flag
// on the rest.
func (d *dal) SetDefaultCard(userID string, id int64) error {
	res, err := d.db.Exec(`
		UPDATE vault_card SET is_default = (id = ?) WHERE user_id = ?`, id, userID)
	if err != nil {
		return errors.Trace(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Trace(err)
	}
	if n == 0 {
		return errors.Trace(ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row scanner) (*Card, error) {
	card := &Card{}
	err := row.Scan(&card.ID, &card.UserID, &card.ProfileID, &card.CardID,
		&card.PaymentToken, &card.Brand, &card.Last4, &card.ExpMonth,
		&card.ExpYear, &card.IsDefault, &card.Created)
	if err == sql.ErrNoRows {
		return nil, errors.Trace(ErrNotFound)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return card, nil
}
