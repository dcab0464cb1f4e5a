package postgres

import "context"

// Truncate empties the table between contract cases.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE refresh_tokens`)
	return err
}
