package types

import "time"

// BlockScanProgress 区块扫描进度模型
type BlockScanProgress struct {
	ID                 int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ChainID            int64     `json:"chain_id" gorm:"not null;unique;index"`
	ChainName          string    `json:"chain_name" gorm:"size:50;not null"`
	LastScannedBlock   int64     `json:"last_scanned_block" gorm:"not null;default:0"`
	LastScannedHash    string    `json:"last_scanned_hash" gorm:"size:66"`
	LatestNetworkBlock int64     `json:"latest_network_block" gorm:"default:0"`
	SpecVersion        int       `json:"spec_version" gorm:"not null;default:0"`
	ScanStatus         string    `json:"scan_status" gorm:"size:20;not null;default:'running';index"`
	ErrorMessage       *string   `json:"error_message" gorm:"type:text"`
	LastUpdateTime     time.Time `json:"last_update_time" gorm:"default:CURRENT_TIMESTAMP"`
	CreatedAt          time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 设置表名
func (BlockScanProgress) TableName() string {
	return "block_scan_progress"
}

// ScannerStatus 扫链状态枚举
const (
	ScanStatusRunning = "running"
	ScanStatusPaused  = "paused"
	ScanStatusError   = "error"
)

// BlockHeader 链节点返回的区块头
type BlockHeader struct {
	Hash      string `json:"hash"`
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"` // 毫秒
}

// BlockMessage 区块队列消息
type BlockMessage struct {
	ChainID int64        `json:"chain_id"`
	Block   BlockMeta    `json:"block"`
	Events  []BlockEvent `json:"events"`
}
