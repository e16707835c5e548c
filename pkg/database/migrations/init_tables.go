package migrations

import (
	"context"
	"fmt"
	"time"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/gorm"
)

// Migration 表示一个数据库迁移版本
type Migration struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Version     string `gorm:"unique;size:50;not null"`
	Description string `gorm:"size:200;not null"`
	Applied     bool   `gorm:"not null;default:false"`
	AppliedAt   *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName 设置表名
func (Migration) TableName() string {
	return "schema_migrations"
}

// MigrationHandler 迁移处理器
type MigrationHandler struct {
	db *gorm.DB
}

// NewMigrationHandler 创建迁移处理器
func NewMigrationHandler(db *gorm.DB) *MigrationHandler {
	return &MigrationHandler{db: db}
}

// migrationFunc 迁移函数类型，在迁移事务内执行
type migrationFunc struct {
	version     string
	description string
	fn          func(ctx context.Context, tx *gorm.DB) error
}

// InitTables 安全的数据库初始化，不会删除现有数据
func InitTables(db *gorm.DB) error {
	ctx := context.Background()
	logger.Info("Starting safe database initialization...")

	handler := NewMigrationHandler(db)

	if err := handler.ensureMigrationTable(ctx); err != nil {
		logger.Error("Failed to create migration table", err)
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	if err := handler.runMigrations(ctx); err != nil {
		logger.Error("Failed to run migrations", err)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database initialization completed successfully")
	return nil
}

func (h *MigrationHandler) ensureMigrationTable(ctx context.Context) error {
	if h.db.Migrator().HasTable(&Migration{}) {
		return nil
	}

	logger.Info("Creating migration table...")
	if err := h.db.WithContext(ctx).AutoMigrate(&Migration{}); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

func (h *MigrationHandler) migrations() []migrationFunc {
	return []migrationFunc{
		{"v1.0.0", "Create workflow engine tables", createTables},
		{"v1.0.1", "Create indexes", createIndexes},
		{"v1.0.2", "Insert default chains data", insertSupportedChains},
	}
}

func (h *MigrationHandler) runMigrations(ctx context.Context) error {
	for _, migration := range h.migrations() {
		if err := h.runSingleMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.version, err)
		}
	}
	return nil
}

// runSingleMigration 执行单个迁移，迁移逻辑与版本记录在同一事务内
func (h *MigrationHandler) runSingleMigration(ctx context.Context, migration migrationFunc) error {
	var existing Migration
	result := h.db.WithContext(ctx).Where("version = ?", migration.version).First(&existing)
	if result.Error == nil && existing.Applied {
		logger.Debug("Migration already applied", "version", migration.version)
		return nil
	}

	logger.Info("Running migration", "version", migration.version, "description", migration.description)

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.fn(ctx, tx); err != nil {
			return err
		}

		now := time.Now()
		if result.Error != nil {
			return tx.Create(&Migration{
				Version:     migration.version,
				Description: migration.description,
				Applied:     true,
				AppliedAt:   &now,
			}).Error
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"applied":    true,
			"applied_at": &now,
		}).Error
	})
	if err != nil {
		logger.Error("Migration failed", err, "version", migration.version)
		return err
	}

	logger.Info("Migration completed successfully", "version", migration.version)
	return nil
}

// createTables 创建工作流引擎相关表（v1.0.0）
func createTables(ctx context.Context, tx *gorm.DB) error {
	models := []interface{}{
		&types.SupportChain{},
		&types.ChainVersion{},
		&types.EventDefinition{},
		&types.BlockScanProgress{},
		&types.Workflow{},
		&types.WorkflowTask{},
		&types.WorkflowLog{},
		&types.TaskLog{},
		&logger.ErrorLog{},
	}
	if err := tx.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// createIndexes 创建 AutoMigrate 无法表达的索引（v1.0.1）
func createIndexes(ctx context.Context, tx *gorm.DB) error {
	indexes := []string{
		// 同一链同一版本内事件名唯一
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_event_definitions_chain_version_name ON event_definitions(chain_id, spec_version, name)`,
		`CREATE INDEX IF NOT EXISTS idx_event_definitions_chain_name_version ON event_definitions(chain_id, name, spec_version DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_tasks_trigger_event ON workflow_tasks(event_id) WHERE type = 'trigger'`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_user_created ON workflows(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_logs_workflow_created ON workflow_logs(workflow_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_task_logs_workflow_log_sequence ON task_logs(workflow_log_id, sequence)`,
		`CREATE INDEX IF NOT EXISTS idx_error_logs_timestamp ON error_logs(timestamp DESC)`,
	}

	for _, stmt := range indexes {
		if err := tx.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// insertSupportedChains 插入默认链数据（v1.0.2）
func insertSupportedChains(ctx context.Context, tx *gorm.DB) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&types.SupportChain{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count support chains: %w", err)
	}
	if count > 0 {
		logger.Info("Supported chains data already exists, skipping insertion")
		return nil
	}

	chains := []types.SupportChain{
		{
			ChainID:       1,
			ChainName:     "polkadot",
			DisplayName:   "Polkadot",
			RPCURL:        "wss://rpc.polkadot.io",
			TokenSymbol:   "DOT",
			TokenDecimals: 10,
			IsActive:      true,
		},
		{
			ChainID:       2,
			ChainName:     "kusama",
			DisplayName:   "Kusama",
			RPCURL:        "wss://kusama-rpc.polkadot.io",
			TokenSymbol:   "KSM",
			TokenDecimals: 12,
			IsActive:      true,
		},
		{
			ChainID:       42,
			ChainName:     "westend",
			DisplayName:   "Westend Testnet",
			RPCURL:        "wss://westend-rpc.polkadot.io",
			TokenSymbol:   "WND",
			TokenDecimals: 12,
			IsTestnet:     true,
			IsActive:      true,
		},
	}

	if err := tx.WithContext(ctx).Create(&chains).Error; err != nil {
		return fmt.Errorf("failed to insert support chains: %w", err)
	}

	logger.Info("Inserted supported chains", "count", len(chains))
	return nil
}

// GetMigrationStatus 获取迁移状态
func GetMigrationStatus(db *gorm.DB) ([]Migration, error) {
	var migrations []Migration
	err := db.Order("created_at ASC").Find(&migrations).Error
	return migrations, err
}
