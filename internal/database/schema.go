package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"courtbook/internal/config"
	"courtbook/internal/middleware"
	"courtbook/internal/models"

	"gorm.io/gorm"
)

// Schema modes. Hybrid runs the SQL migrations everywhere and AutoMigrate
// outside production-like environments.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// bookingIndex is a unique index the booking engine relies on to reject
// duplicate windows and double bookings at the storage layer.
type bookingIndex struct {
	model interface{}
	name  string
}

// bookingIndexes must exist after ApplySchema whichever path built the
// tables. Both the SQL migrations and the model tags declare them.
var bookingIndexes = []bookingIndex{
	{model: &models.Slot{}, name: "idx_slots_window"},
	{model: &models.Reservation{}, name: "idx_reservations_active_slot"},
}

// SchemaStatus describes what ApplySchema would do for a configuration and
// whether the booking indexes are in place.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	MissingIndexes     []string
}

type schemaPlan struct {
	mode    string
	runSQL  bool
	runAuto bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.mode == "" {
		plan.mode = SchemaModeHybrid
	}
	prodLike := isProdLikeEnv(cfg.Env)

	switch plan.mode {
	case SchemaModeSQL:
		plan.runSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.runAuto = true
	case SchemaModeHybrid:
		plan.runSQL = true
		plan.runAuto = !prodLike
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// MissingBookingIndexes lists the booking indexes absent from the connected
// database. Tables that do not exist yet report all of their indexes.
func MissingBookingIndexes(db *gorm.DB) []string {
	migrator := db.Migrator()
	var missing []string
	for _, idx := range bookingIndexes {
		if !migrator.HasTable(idx.model) || !migrator.HasIndex(idx.model, idx.name) {
			missing = append(missing, idx.name)
		}
	}
	return missing
}

// ApplySchema runs SQL migrations and/or AutoMigrate according to
// DB_SCHEMA_MODE, then refuses to continue if a booking index is missing.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if plan.runAuto {
		if plan.mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
		}
		middleware.Logger.Info("Running GORM AutoMigrate",
			slog.String("mode", plan.mode),
			slog.String("env", cfg.Env),
			slog.Int("models", len(PersistentModels())))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	if missing := MissingBookingIndexes(db.WithContext(ctx)); len(missing) > 0 {
		return fmt.Errorf("booking indexes missing after schema apply: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetSchemaStatus reports the schema plan, pending SQL migrations and any
// missing booking indexes.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.runSQL,
		WillRunAutoMigrate: plan.runAuto,
		MissingIndexes:     MissingBookingIndexes(db.WithContext(ctx)),
	}

	if !plan.runSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	seen := make(map[int]struct{}, len(applied))
	for _, version := range applied {
		seen[version] = struct{}{}
	}
	for _, m := range GetMigrations() {
		if _, ok := seen[m.Version]; !ok {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
