package postgres

import (
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/jackc/pgx/v5"
)

type txStore struct {
	tx pgx.Tx
	q  *queries
}

func newTx(tx pgx.Tx) *txStore {
	return &txStore{tx: tx, q: newQueries(tx)}
}

func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.q} }
