// Package tsql abstracts over *sql.DB and *sql.Tx so data access code can
// run unchanged inside or outside a transaction.
package tsql

import (
	"database/sql"
	"errors"
)

// DB is the set of methods shared by sql.DB and sql.Tx.
type DB interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
	Begin() (Tx, error)
}

// Tx is a transaction.
type Tx interface {
	DB
	Rollback() error
	Commit() error
}

// AsDB wraps a sql.DB to conform to the tsql interfaces.
func AsDB(s *sql.DB) DB {
	return &db{s}
}

type db struct {
	*sql.DB
}

func (db *db) Begin() (Tx, error) {
	t, err := db.DB.Begin()
	if err != nil {
		return nil, err
	}
	return &tx{t}, nil
}

type tx struct {
	*sql.Tx
}

func (tx *tx) Begin() (Tx, error) {
	return nil, errors.New("tsql: cannot call Begin on an existing transaction")
}

// safeTx is a transaction that cannot be rolled back or committed by the
// code it is handed to, and on which Begin returns itself. It lets a
// transaction manager pass its Tx into code written against DB without
// that code being able to end the transaction.
type safeTx struct {
	Tx
}

// AsSafeTx converts a Tx into a safe transaction.
func AsSafeTx(t Tx) Tx {
	return &safeTx{t}
}

func (tx *safeTx) Begin() (Tx, error) {
	return tx, nil
}

func (tx *safeTx) Rollback() error {
	return nil
}

func (tx *safeTx) Commit() error {
	return nil
}
