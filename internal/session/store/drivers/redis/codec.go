package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
)

// Record hash fields. used_at and revoked_at are absent until set.
const (
	fieldID         = "id"
	fieldFamilyID   = "family_id"
	fieldUserID     = "user_id"
	fieldRole       = "role"
	fieldClaims     = "claims"
	fieldPreviousID = "previous_id"
	fieldIssuedAt   = "issued_at"
	fieldExpiresAt  = "expires_at"
	fieldUsedAt     = "used_at"
	fieldRevokedAt  = "revoked_at"
)

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// encodeFields flattens rec into HSET arguments.
func encodeFields(rec domain.RefreshRecord) ([]any, error) {
	claims := "{}"
	if len(rec.Claims) > 0 {
		b, err := json.Marshal(rec.Claims)
		if err != nil {
			return nil, fmt.Errorf("redis: encode claims: %w", err)
		}
		claims = string(b)
	}

	fields := []any{
		fieldID, rec.ID.String(),
		fieldFamilyID, rec.FamilyID,
		fieldUserID, rec.UserID,
		fieldRole, rec.Role,
		fieldClaims, claims,
		fieldPreviousID, rec.PreviousID.String(),
		fieldIssuedAt, millis(rec.IssuedAt),
		fieldExpiresAt, millis(rec.ExpiresAt),
	}
	if rec.UsedAt != nil {
		fields = append(fields, fieldUsedAt, millis(*rec.UsedAt))
	}
	if rec.RevokedAt != nil {
		fields = append(fields, fieldRevokedAt, millis(*rec.RevokedAt))
	}
	return fields, nil
}

func decodeFields(hash string, m map[string]string) (domain.RefreshRecord, error) {
	id, err := idx.Parse(m[fieldID])
	if err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("redis: bad id %q: %w", m[fieldID], err)
	}

	rec := domain.RefreshRecord{
		ID:        id,
		TokenHash: hash,
		FamilyID:  m[fieldFamilyID],
		UserID:    m[fieldUserID],
		Role:      m[fieldRole],
	}

	if p := m[fieldPreviousID]; p != "" {
		if rec.PreviousID, err = idx.Parse(p); err != nil {
			return domain.RefreshRecord{}, fmt.Errorf("redis: bad previous_id %q: %w", p, err)
		}
	}
	if c := m[fieldClaims]; c != "" && c != "{}" {
		if err := json.Unmarshal([]byte(c), &rec.Claims); err != nil {
			return domain.RefreshRecord{}, fmt.Errorf("redis: decode claims: %w", err)
		}
	}

	if rec.IssuedAt, err = parseMillis(m[fieldIssuedAt]); err != nil {
		return domain.RefreshRecord{}, err
	}
	if rec.ExpiresAt, err = parseMillis(m[fieldExpiresAt]); err != nil {
		return domain.RefreshRecord{}, err
	}
	if rec.UsedAt, err = parseOptMillis(m, fieldUsedAt); err != nil {
		return domain.RefreshRecord{}, err
	}
	if rec.RevokedAt, err = parseOptMillis(m, fieldRevokedAt); err != nil {
		return domain.RefreshRecord{}, err
	}
	return rec, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: bad timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseOptMillis(m map[string]string, field string) (*time.Time, error) {
	s, ok := m[field]
	if !ok {
		return nil, nil
	}
	t, err := parseMillis(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
