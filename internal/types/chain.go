package types

import "time"

// SupportChain 支持的链
type SupportChain struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ChainID       int64     `json:"chain_id" gorm:"not null;uniqueIndex"`
	ChainName     string    `json:"chain_name" gorm:"size:50;not null;uniqueIndex"`
	DisplayName   string    `json:"display_name" gorm:"size:100;not null"`
	RPCURL        string    `json:"-" gorm:"column:rpc_url;size:255;not null"`
	TokenSymbol   string    `json:"token_symbol" gorm:"size:20;not null"`
	TokenDecimals int       `json:"token_decimals" gorm:"not null;default:12"`
	IsTestnet     bool      `json:"is_testnet" gorm:"not null;default:false;index"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 设置表名
func (SupportChain) TableName() string {
	return "support_chains"
}

// ChainVersion 链运行时版本记录
type ChainVersion struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ChainID     int64     `json:"chain_id" gorm:"not null;uniqueIndex:idx_chain_spec_version"`
	SpecVersion int       `json:"spec_version" gorm:"not null;uniqueIndex:idx_chain_spec_version"`
	BlockHash   string    `json:"block_hash" gorm:"size:66;not null"`
	EventCount  int       `json:"event_count" gorm:"not null;default:0"`
	ErrorCount  int       `json:"error_count" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 设置表名
func (ChainVersion) TableName() string {
	return "chain_versions"
}

// GetSupportChainsRequest 获取支持链列表请求
type GetSupportChainsRequest struct {
	IsTestnet *bool `form:"is_testnet"`
	IsActive  *bool `form:"is_active"`
}

// GetSupportChainsResponse 获取支持链列表响应
type GetSupportChainsResponse struct {
	Chains []*SupportChain `json:"chains"`
	Total  int             `json:"total"`
}
