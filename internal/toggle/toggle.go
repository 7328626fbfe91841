// Package toggle implements the XOR membership flip shared by likes,
// bookmarks, follows, mutes, and blocks: a uniquely-keyed row whose
// existence IS the boolean state.
package toggle

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Flip attempts an atomic get-or-create on the record's uniqueness key.
// A newly created row means the toggle is now active; an existing row is
// deleted and the toggle becomes inactive. Every call flips state — there
// is no "set explicitly" variant. Concurrent identical requests race on
// the unique constraint and the loser observes the existing row.
func Flip[T any](ctx context.Context, tx *gorm.DB, record *T, key map[string]interface{}) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var row T
	if err := tx.WithContext(ctx).Where(key).Delete(&row).Error; err != nil {
		return false, err
	}
	return false, nil
}

// IsActive is the read contract: an exact existence check, always false
// for the unauthenticated zero actor.
func IsActive[T any](ctx context.Context, db *gorm.DB, actorID int64, key map[string]interface{}) (bool, error) {
	if actorID == 0 {
		return false, nil
	}
	var row T
	var count int64
	if err := db.WithContext(ctx).Model(&row).Where(key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Message renders the confirmation returned alongside the new state.
func Message(display, list string, active bool) string {
	verb := "removed from"
	if active {
		verb = "added to"
	}
	return fmt.Sprintf("%s %s your %s list.", display, verb, list)
}
