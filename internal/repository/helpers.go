package repository

import (
	"database/sql"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// requireRow turns "no rows affected" into notFound.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
