package tenant

import "gorm.io/gorm"

// ForTeam returns a GORM scope that filters by team_id.
func ForTeam(teamID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("team_id = ?", teamID)
	}
}
